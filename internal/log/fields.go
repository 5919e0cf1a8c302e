package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldDuration    = "duration_ms"
	FieldAccountID   = "account_id"
	FieldCategoryID  = "category_id"
	FieldTxID        = "transaction_id"
	FieldTxType      = "type"
	FieldAmountCents = "amount_cents"
	FieldBalance     = "balance_cents"
	FieldName        = "name"
	FieldBucket      = "bucket"
	FieldDBPath      = "db_path"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentStorage     = "storage"
	ComponentLedger      = "ledger"
	ComponentCoordinator = "coordinator"
	ComponentCache       = "cache"
	ComponentSeed        = "seed"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpDelete    = "delete"
	OpRecord    = "record"
	OpAggregate = "aggregate"
	OpReconcile = "reconcile"
	OpReset     = "reset"
	OpSeed      = "seed"
	OpStartup   = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeConstraint    = "constraint_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeCoercion      = "coercion_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds the error category
func (f LogFields) WithErrorType(errorType string) LogFields {
	f[FieldErrorType] = errorType
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds the fields identifying a recorded transaction
func (f LogFields) WithTransaction(id, accountID, categoryID int64, txType string, amountCents int64) LogFields {
	f[FieldTxID] = id
	f[FieldAccountID] = accountID
	f[FieldCategoryID] = categoryID
	f[FieldTxType] = txType
	f[FieldAmountCents] = amountCents
	return f
}

// WithBalance adds the account balance after a write
func (f LogFields) WithBalance(accountID, balanceCents int64) LogFields {
	f[FieldAccountID] = accountID
	f[FieldBalance] = balanceCents
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
