package model

import (
	"fmt"
	"time"
)

// Job is one render request and its tracked lifecycle.
type Job struct {
	ID              string         `json:"id"`
	OwnerID         string         `json:"ownerId"`
	ProjectID       string         `json:"projectId"`
	PresentationID  string         `json:"presentationId"`
	Status          JobStatus      `json:"status"`
	Priority        Priority       `json:"priority"`
	Progress        int            `json:"progress"`
	CurrentStage    string         `json:"currentStage,omitempty"`
	ETASeconds      *int           `json:"etaSeconds,omitempty"`
	CompletedStages []string       `json:"completedStages,omitempty"`
	Settings        RenderSettings `json:"settings"`
	OutputURL       string         `json:"outputUrl,omitempty"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
	WebhookURL      string         `json:"-"`
	RetryOf         string         `json:"retryOf,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	StartedAt       *time.Time     `json:"startedAt,omitempty"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.ETASeconds != nil {
		v := *j.ETASeconds
		out.ETASeconds = &v
	}
	if j.StartedAt != nil {
		v := *j.StartedAt
		out.StartedAt = &v
	}
	if j.CompletedAt != nil {
		v := *j.CompletedAt
		out.CompletedAt = &v
	}
	if j.CompletedStages != nil {
		out.CompletedStages = append([]string(nil), j.CompletedStages...)
	}
	out.Settings = j.Settings.Clone()
	return &out
}

// Entry builds the dispatch descriptor for the job.
func (j *Job) Entry() QueueEntry {
	return QueueEntry{
		JobID:          j.ID,
		OwnerID:        j.OwnerID,
		ProjectID:      j.ProjectID,
		PresentationID: j.PresentationID,
		Priority:       j.Priority,
		Settings:       j.Settings,
		WebhookURL:     j.WebhookURL,
	}
}

// RenderSettings holds the validated, immutable output configuration of a job
type RenderSettings struct {
	Resolution Resolution `json:"resolution" validate:"required,oneof=720p 1080p 4k"`
	FPS        int        `json:"fps" validate:"required,oneof=24 30 60"`
	Codec      Codec      `json:"codec" validate:"required,oneof=h264 h265 vp9 av1"`
	Format     Format     `json:"format" validate:"required,oneof=mp4 webm mov"`
	Quality    Quality    `json:"quality,omitempty" validate:"omitempty,oneof=draft good best"`
	Bitrate    string     `json:"bitrate,omitempty" validate:"omitempty,max=16"`
	VoiceID    string     `json:"voiceId,omitempty" validate:"omitempty,max=128"`
	Language   string     `json:"language,omitempty" validate:"omitempty,bcp47_language_tag"`
	Watermark  *Watermark `json:"watermark,omitempty" validate:"omitempty"`
}

// Watermark overlay settings
type Watermark struct {
	Text     string  `json:"text,omitempty" validate:"omitempty,max=120"`
	Position string  `json:"position" validate:"required,oneof=top-left top-right bottom-left bottom-right center"`
	Opacity  float64 `json:"opacity" validate:"gte=0,lte=1"`
}

// Clone returns a deep copy of the settings.
func (s RenderSettings) Clone() RenderSettings {
	if s.Watermark != nil {
		w := *s.Watermark
		s.Watermark = &w
	}
	return s
}

// CheckCombination rejects codec/container pairs the encoder cannot produce.
// Field-level rules live in the validate tags.
func (s RenderSettings) CheckCombination() error {
	switch s.Format {
	case FormatWebM:
		if s.Codec != CodecVP9 && s.Codec != CodecAV1 {
			return &ValidationError{
				Message: fmt.Sprintf("codec %s cannot be stored in a webm container", s.Codec),
				Fields:  map[string]string{"settings.codec": "must be vp9 or av1 for webm"},
			}
		}
	case FormatMOV:
		if s.Codec != CodecH264 && s.Codec != CodecH265 {
			return &ValidationError{
				Message: fmt.Sprintf("codec %s cannot be stored in a mov container", s.Codec),
				Fields:  map[string]string{"settings.codec": "must be h264 or h265 for mov"},
			}
		}
	}
	return nil
}

// QueueEntry is the dispatch descriptor carried by a queue task. It references
// the job by id and holds only what the worker needs to begin.
type QueueEntry struct {
	JobID          string         `json:"jobId"`
	OwnerID        string         `json:"ownerId"`
	ProjectID      string         `json:"projectId"`
	PresentationID string         `json:"presentationId"`
	Priority       Priority       `json:"priority"`
	Settings       RenderSettings `json:"settings"`
	WebhookURL     string         `json:"webhookUrl,omitempty"`
}
