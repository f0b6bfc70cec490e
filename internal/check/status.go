package check

// Status is the monitoring state of one check run. Its value is the process
// exit code expected by Nagios-compatible supervisors.
type Status int

const (
	OK       Status = 0
	Warning  Status = 1
	Critical Status = 2
	Unknown  Status = 3
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

func (s Status) ExitCode() int {
	return int(s)
}

// Limits are the optional thresholds. A nil limit never breaches.
type Limits struct {
	Warning  *int
	Critical *int
}

// Classify maps an operation count onto a status. A limit is breached only
// when count is strictly greater than it; critical wins over warning.
func Classify(count int, l Limits) Status {
	if l.Critical != nil && count > *l.Critical {
		return Critical
	}
	if l.Warning != nil && count > *l.Warning {
		return Warning
	}
	return OK
}
