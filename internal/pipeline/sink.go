package pipeline

// Sink is the writable byte destination a pipeline run feeds. Headers may
// only be set before the first Write; the orchestrator guarantees that
// ordering. Client disconnect is signalled through the run's context, not the
// sink itself, so a single cancellation entry point covers every trigger.
type Sink interface {
	Write(p []byte) (int, error)
	SetHeader(key, value string)
}
