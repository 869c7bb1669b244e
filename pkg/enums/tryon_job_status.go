package enums

import "fmt"

// TryOnJobStatus tracks a virtual try-on job persisted in the store.
type TryOnJobStatus string

const (
	TryOnJobStatusQueued     TryOnJobStatus = "queued"
	TryOnJobStatusProcessing TryOnJobStatus = "processing"
	TryOnJobStatusSucceeded  TryOnJobStatus = "succeeded"
	TryOnJobStatusFailed     TryOnJobStatus = "failed"
)

var validTryOnJobStatuses = []TryOnJobStatus{
	TryOnJobStatusQueued,
	TryOnJobStatusProcessing,
	TryOnJobStatusSucceeded,
	TryOnJobStatusFailed,
}

// String implements fmt.Stringer.
func (s TryOnJobStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TryOnJobStatus.
func (s TryOnJobStatus) IsValid() bool {
	for _, candidate := range validTryOnJobStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the job has finished.
func (s TryOnJobStatus) IsTerminal() bool {
	return s == TryOnJobStatusSucceeded || s == TryOnJobStatusFailed
}

// ParseTryOnJobStatus converts raw input into a TryOnJobStatus.
func ParseTryOnJobStatus(value string) (TryOnJobStatus, error) {
	for _, candidate := range validTryOnJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid try-on job status %q", value)
}
