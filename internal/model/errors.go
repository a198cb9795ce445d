package model

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching. The concrete types below carry details
// and are matchable with errors.As.
var (
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDispatch          = errors.New("dispatch failed")
	ErrRenderStage       = errors.New("render stage failed")
)

// ValidationError reports malformed input
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return ErrValidation.Error()
	}
	return e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError reports that the project already has an active job
type ConflictError struct {
	ProjectID   string
	ActiveJobID string
}

func (e *ConflictError) Error() string {
	if e.ActiveJobID == "" {
		return fmt.Sprintf("project %s already has an active render job", e.ProjectID)
	}
	return fmt.Sprintf("project %s already has an active render job (%s)", e.ProjectID, e.ActiveJobID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NotFoundError reports a missing resource
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ForbiddenError reports that the requester may not act on a resource
type ForbiddenError struct {
	Resource string
	ID       string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("access to %s %s denied", e.Resource, e.ID)
}

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// InvalidTransitionError reports an illegal state machine edge
type InvalidTransitionError struct {
	JobID string
	From  JobStatus
	To    JobStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("job %s: cannot transition from %s to %s", e.JobID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// DispatchError reports a queue backend failure that outlasted the retry policy
type DispatchError struct {
	JobID    string
	Attempts int
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch of job %s failed after %d attempts: %v", e.JobID, e.Attempts, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

func (e *DispatchError) Is(target error) bool { return target == ErrDispatch }

// RenderStageError wraps a failure inside one render pipeline stage
type RenderStageError struct {
	Stage string
	Err   error
}

func (e *RenderStageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *RenderStageError) Unwrap() error { return e.Err }

func (e *RenderStageError) Is(target error) bool { return target == ErrRenderStage }
