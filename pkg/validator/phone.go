package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits")

	// ErrInvalidLength indicates the subscriber number is not 10 digits
	ErrInvalidLength = errors.New("phone number must be exactly 10 digits")

	// ErrInvalidPrefix indicates the subscriber number doesn't start with 6-9
	ErrInvalidPrefix = errors.New("phone number must start with 6, 7, 8, or 9")
)

// phoneRegex matches digits only
var phoneRegex = regexp.MustCompile(`^\d+$`)

// PhoneValidator validates and normalizes Indian mobile numbers for the
// WhatsApp Cloud API, which expects country code plus subscriber number
// with no plus sign.
type PhoneValidator struct{}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate validates an Indian mobile number.
// Accepts "+919876543210", "919876543210", "09876543210" or "9876543210",
// with optional spaces or dashes. Returns the normalized "91XXXXXXXXXX" form.
func (v *PhoneValidator) Validate(phone string) (string, error) {
	if phone == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)

	if !phoneRegex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}

	// Strip country code or trunk prefix down to the 10-digit subscriber number
	if strings.HasPrefix(sanitized, "91") && len(sanitized) == 12 {
		sanitized = sanitized[2:]
	} else if strings.HasPrefix(sanitized, "0") && len(sanitized) == 11 {
		sanitized = sanitized[1:]
	}

	if len(sanitized) != 10 {
		return "", ErrInvalidLength
	}

	if sanitized[0] < '6' || sanitized[0] > '9' {
		return "", ErrInvalidPrefix
	}

	return "91" + sanitized, nil
}

// Sanitize removes all non-digit characters from a phone number
func (v *PhoneValidator) Sanitize(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
