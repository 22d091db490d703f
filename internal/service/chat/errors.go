package chat

import "errors"

// ErrUserIDRequired is returned when a request carries no user identifier.
// The message is part of the public API contract.
var ErrUserIDRequired = errors.New("user_id est requis")

// ProviderError reports a failed call to the language model. Its message is the
// underlying failure text.
type ProviderError struct {
	Cause error
}

func (e *ProviderError) Error() string {
	if e.Cause == nil {
		return "provider error"
	}
	return e.Cause.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsValidation reports whether err stems from invalid caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUserIDRequired)
}
