package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldErrorKind   = "error_kind"
	FieldOperation   = "operation"
	FieldTool        = "tool"
	FieldResourceURI = "resource_uri"
	FieldExpenseID   = "expense_id"
	FieldDate        = "date"
	FieldStartDate   = "start_date"
	FieldEndDate     = "end_date"
	FieldAmount      = "amount"
	FieldCategory    = "category"
	FieldCount       = "count"
)

// Components
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentMCP     = "mcp"
	ComponentProxy   = "proxy"
	ComponentExpense = "expense"
	ComponentStorage = "storage"
	ComponentCatalog = "catalog"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
)

// Operations
const (
	OpAdd       = "add"
	OpList      = "list"
	OpSummarize = "summarize"
	OpCatalog   = "categories"
	OpExport    = "export"
	OpForward   = "forward"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds the error message, if any
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithRange adds the queried date bounds
func (f LogFields) WithRange(start, end string) LogFields {
	f[FieldStartDate] = start
	f[FieldEndDate] = end
	return f
}

// WithExpense adds expense-related fields
func (f LogFields) WithExpense(date, amount, category string) LogFields {
	f[FieldDate] = date
	f[FieldAmount] = amount
	f[FieldCategory] = category
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
