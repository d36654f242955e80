package types

// Result is the structured outcome of a session or subsurface operation.
// Routine "nothing to do" cases (missing target, already torn down) are
// reported here rather than as errors, so callers branch on data.
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   *string        `json:"error,omitempty"`
}

// Ok returns a successful result carrying optional data.
func Ok(data map[string]any) Result {
	return Result{Success: true, Data: data}
}

// Fail returns a failed result with a message.
func Fail(message string) Result {
	return Result{Success: false, Error: &message}
}

// Failf returns a failed result built from the error's message.
func Failf(err error) Result {
	msg := err.Error()
	return Result{Success: false, Error: &msg}
}
