package runtime

// TransportError is a failed model call: non-success response, timeout or
// connection problem. The retry protocol backs off before trying again.
type TransportError struct {
	Kind    string // providers.ErrorType* value
	Message string
}

func (e *TransportError) Error() string {
	if e.Kind == "" {
		return e.Message
	}
	return e.Kind + ": " + e.Message
}

// ValidationError is a model response that failed JSON parsing or schema
// validation. Retried immediately, without backoff.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}
