package ports

// DiagnosticSink receives errors that the host facade does not return
type DiagnosticSink interface {
	LogError(msg string)
}
