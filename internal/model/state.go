package model

var transitions = map[JobStatus][]JobStatus{
	JobStatusQueued:     {JobStatusProcessing, JobStatusCancelled},
	JobStatusProcessing: {JobStatusPaused, JobStatusCompleted, JobStatusFailed, JobStatusCancelled},
	JobStatusPaused:     {JobStatusProcessing, JobStatusCancelled},
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	for _, v := range ValidJobStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are permitted from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// IsActive reports whether a job in status s occupies its project's slot.
func (s JobStatus) IsActive() bool {
	for _, v := range ActiveJobStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether from -> to is a legal edge of the job state machine.
func CanTransition(from, to JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	for _, v := range ValidPriorities {
		if v == p {
			return true
		}
	}
	return false
}
