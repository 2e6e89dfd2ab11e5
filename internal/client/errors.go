package client

import "fmt"

// PlatformError is a non-2xx response from the commerce platform, preserving
// the status code and the structured message the platform returned. The
// gateway reports these, it does not retry them.
type PlatformError struct {
	Status     int
	Message    string
	Parameters any
}

func (e *PlatformError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform returned status %d", e.Status)
	}
	return fmt.Sprintf("platform returned status %d: %s", e.Status, e.Message)
}
