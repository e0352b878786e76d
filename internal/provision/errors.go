package provision

import (
	"fmt"
	"strings"
)

// FetchError is returned when a dependency download fails.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to download %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// LayoutError is returned when an extracted archive does not have the expected shape.
type LayoutError struct {
	Resource string
	Expected string
	Found    []string
}

func (e *LayoutError) Error() string {
	found := "nothing"
	if len(e.Found) > 0 {
		found = strings.Join(e.Found, ", ")
	}
	return fmt.Sprintf("unexpected layout for %s: expected %s, found %s", e.Resource, e.Expected, found)
}

// ChecksumError is returned when a downloaded file does not match its pinned digest.
type ChecksumError struct {
	Resource string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Resource, e.Expected, e.Actual)
}
