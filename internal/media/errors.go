package media

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMissingURL marks an absent media reference.
var ErrMissingURL = errors.New("URL is required")

// ResolutionError reports a failed metadata resolution: unsupported platform,
// unreachable resource, or unusable extractor output.
type ResolutionError struct {
	URL string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.URL, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ValidateReference checks that a media reference is non-empty and has URL
// shape. Deeper validation is the extraction tool's job.
func ValidateReference(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrMissingURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("malformed URL %q", raw)
	}
	return nil
}
