package accounts

import (
	"errors"
	"fmt"
)

// MaxSlugLength is the longest slug that still fits in one DNS label
const MaxSlugLength = 63

// ErrInvalidSlug is returned for slugs that cannot be used as a subdomain label
var ErrInvalidSlug = errors.New("invalid slug")

// ValidateSlug checks that slug is lowercase alphanumerics and hyphens and does
// not start or end with a hyphen.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSlug)
	}
	if len(slug) > MaxSlugLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidSlug, MaxSlugLength)
	}
	if slug[0] == '-' || slug[len(slug)-1] == '-' {
		return fmt.Errorf("%w: %q starts or ends with a hyphen", ErrInvalidSlug, slug)
	}
	for i := 0; i < len(slug); i++ {
		c := slug[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			continue
		}
		return fmt.Errorf("%w: %q contains %q", ErrInvalidSlug, slug, c)
	}
	return nil
}

// IsValidSlug is the boolean form of ValidateSlug
func IsValidSlug(slug string) bool {
	return ValidateSlug(slug) == nil
}
