package model

// Job status
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusPaused     JobStatus = "paused"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

var ValidJobStatuses = []JobStatus{
	JobStatusQueued, JobStatusProcessing, JobStatusPaused,
	JobStatusCompleted, JobStatusFailed, JobStatusCancelled,
}

// ActiveJobStatuses are the statuses that hold a project's single render slot.
var ActiveJobStatuses = []JobStatus{JobStatusQueued, JobStatusProcessing, JobStatusPaused}

// Priority orders dispatch: high before normal before low, FIFO within a tier.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

var ValidPriorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh}

// Resolution presets
type Resolution string

const (
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
	Resolution4K    Resolution = "4k"
)

// Dimensions returns the frame size for a resolution preset.
func (r Resolution) Dimensions() (width, height int) {
	switch r {
	case Resolution720p:
		return 1280, 720
	case Resolution4K:
		return 3840, 2160
	default:
		return 1920, 1080
	}
}

// Video codecs
type Codec string

const (
	CodecH264 Codec = "h264"
	CodecH265 Codec = "h265"
	CodecVP9  Codec = "vp9"
	CodecAV1  Codec = "av1"
)

// Container formats
type Format string

const (
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
	FormatMOV  Format = "mov"
)

// ContentType returns the MIME type used when uploading the rendered file.
func (f Format) ContentType() string {
	switch f {
	case FormatWebM:
		return "video/webm"
	case FormatMOV:
		return "video/quicktime"
	default:
		return "video/mp4"
	}
}

// Quality presets
type Quality string

const (
	QualityDraft Quality = "draft"
	QualityGood  Quality = "good"
	QualityBest  Quality = "best"
)

// CRF returns the constant rate factor handed to the encoder.
func (q Quality) CRF() int {
	switch q {
	case QualityDraft:
		return 28
	case QualityBest:
		return 18
	default:
		return 23
	}
}

// Render pipeline stages, in execution order.
const (
	StagePrepareAssets   = "prepare_assets"
	StageRenderSlides    = "render_slides"
	StageComposeTimeline = "compose_timeline"
	StageEncode          = "encode"
	StageUpload          = "upload"
)

var RenderStages = []string{
	StagePrepareAssets, StageRenderSlides, StageComposeTimeline, StageEncode, StageUpload,
}
