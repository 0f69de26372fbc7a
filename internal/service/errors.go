package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jack/golang-campaign-redirect-service/internal/repository"
)

// ErrCampaignExhausted means the campaign exists but none of its URLs can be served.
var ErrCampaignExhausted = errors.New("campaign has no active urls")

// ValidationError is returned for malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsNotFound reports whether err means a campaign, URL, original record or
// blacklist entry does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrCampaignNotFound) ||
		errors.Is(err, repository.ErrURLNotFound) ||
		errors.Is(err, repository.ErrOriginalNotFound) ||
		errors.Is(err, repository.ErrBlacklistNotFound)
}

// validationError converts validator output into a ValidationError naming the first bad field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return invalid(fe.Field(), fmt.Sprintf("failed %q check", fe.Tag()))
	}
	return invalid("request", err.Error())
}
