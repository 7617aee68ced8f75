package nlp

import "errors"

var (
	ErrRateLimit     = errors.New("rate limit exceeded. Please try again later")
	ErrRefusal       = errors.New("the LLM refused to respond to this prompt")
	ErrEmptyResponse = errors.New("the LLM returned an empty response")
	ErrInvalidModel  = errors.New("invalid model specified")
)

// RateLimitError is returned when the provider throttles the caller.
// errors.Is(err, &RateLimitError{}) matches any RateLimitError in the chain.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return ErrRateLimit.Error()
	}
	return e.Message
}

func (e *RateLimitError) Is(target error) bool {
	_, ok := target.(*RateLimitError)
	return ok
}

// NewRateLimitError creates a rate limit error with an optional message.
func NewRateLimitError(message ...string) *RateLimitError {
	err := &RateLimitError{}
	if len(message) > 0 {
		err.Message = message[0]
	}
	return err
}

// RefusalError carries the model's refusal text.
type RefusalError struct {
	Message string
}

func (e *RefusalError) Error() string {
	return e.Message
}

func (e *RefusalError) Is(target error) bool {
	_, ok := target.(*RefusalError)
	return ok
}

func NewRefusalError(message string) *RefusalError {
	return &RefusalError{Message: message}
}

// EmptyResponseError is returned when the reply has no usable content.
type EmptyResponseError struct {
	Message string
}

func (e *EmptyResponseError) Error() string {
	return e.Message
}

func (e *EmptyResponseError) Is(target error) bool {
	_, ok := target.(*EmptyResponseError)
	return ok
}

func NewEmptyResponseError(message string) *EmptyResponseError {
	return &EmptyResponseError{Message: message}
}
