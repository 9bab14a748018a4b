package log

// MultiLogger fans one event stream out to several loggers: typically
// an SlogAdapter for the console next to a FileLogger capture.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger builds a fan-out over the given loggers. Nil entries
// are skipped, so optional sinks can be passed without a guard.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	kept := make([]Logger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			kept = append(kept, l)
		}
	}
	return &MultiLogger{loggers: kept}
}

// Log forwards the event to every sink in order.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
