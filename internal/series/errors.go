package series

import "fmt"

// Reason classifies a DataIntegrityError.
type Reason string

const (
	ReasonMissingColumn      Reason = "missing column"
	ReasonNonNumeric         Reason = "non-numeric value"
	ReasonBadTimestamp       Reason = "unparseable timestamp"
	ReasonDuplicateTimestamp Reason = "duplicate timestamp"
	ReasonNonPositivePrice   Reason = "non-positive price"
	ReasonEmpty              Reason = "empty after cleaning"
	ReasonTooShort           Reason = "too few rows"
)

// DataIntegrityError reports malformed input. It is fatal for a whole run.
type DataIntegrityError struct {
	Reason Reason
	Column string
	Detail string
}

func (e *DataIntegrityError) Error() string {
	msg := "data integrity: " + string(e.Reason)
	if e.Column != "" {
		msg += fmt.Sprintf(" (column %q)", e.Column)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func integrity(reason Reason, column, format string, args ...interface{}) error {
	return &DataIntegrityError{Reason: reason, Column: column, Detail: fmt.Sprintf(format, args...)}
}
