package entities

// StepResult carries either the payload of one analysis step or its error
type StepResult[T any] struct {
	Step  string
	Value T
	Err   error
}

// Ok wraps a successful payload
func Ok[T any](step string, v T) StepResult[T] {
	return StepResult[T]{Step: step, Value: v}
}

// Fail wraps a step error
func Fail[T any](step string, err error) StepResult[T] {
	return StepResult[T]{Step: step, Err: err}
}

// Failed reports whether the step produced an error
func (r StepResult[T]) Failed() bool {
	return r.Err != nil
}
