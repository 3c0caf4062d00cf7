package status

// JobStatus is the lifecycle state of one job run
type JobStatus string

const (
	// JobStatusPending means the run is queued and has not started
	JobStatusPending JobStatus = "Pending"

	// JobStatusInProgress means the run is executing
	JobStatusInProgress JobStatus = "InProgress"

	// JobStatusCompleted means the run finished successfully
	JobStatusCompleted JobStatus = "Completed"

	// JobStatusError means the run failed; the record carries the error message
	JobStatusError JobStatus = "Error"
)

// IsTerminal reports whether no further transitions follow s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// Valid reports whether s is one of the known states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusInProgress, JobStatusCompleted, JobStatusError:
		return true
	}
	return false
}

// Record is the persisted status of one run
type Record struct {
	// RunID is "{jobId}_{fireToken}"
	RunID string `db:"jobid" json:"runId"`

	Status JobStatus `db:"status" json:"status"`

	// ErrorMessage is set only while Status is Error
	ErrorMessage *string `db:"errormessage" json:"errorMessage,omitempty"`
}
