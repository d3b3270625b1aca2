package esi

import (
	"fmt"
)

// AcquisitionError is one failed attempt against the catalog: a transport
// error or a non-success status. It is retried while the policy allows.
type AcquisitionError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *AcquisitionError) Error() string {
	if e.Err != nil {
		if e.StatusCode != 0 {
			return fmt.Sprintf("request to %s failed (status %d): %v", e.URL, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request to %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// FatalAcquisitionError means a request exhausted its retries. The whole batch
// is abandoned and no partial results are returned.
type FatalAcquisitionError struct {
	Resource string
	URL      string
	Attempts int
	Err      error
}

func (e *FatalAcquisitionError) Error() string {
	return fmt.Sprintf("fetching %s aborted: %s failed after %d attempts: %v", e.Resource, e.URL, e.Attempts, e.Err)
}

func (e *FatalAcquisitionError) Unwrap() error { return e.Err }
