package adapter

import "context"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// AdminNotifier is a fire-and-forget alerting sink for operators. A failure
// to notify must never abort the operation being reported on.
type AdminNotifier interface {
	Notify(ctx context.Context, title, message string, severity Severity, data map[string]string)
}
