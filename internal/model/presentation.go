package model

import "time"

// Element types found on a slide
type ElementType string

const (
	ElementText  ElementType = "text"
	ElementShape ElementType = "shape"
	ElementImage ElementType = "image"
	ElementVideo ElementType = "video"
	ElementTable ElementType = "table"
	ElementChart ElementType = "chart"
)

// Presentation is an ingested PPTX and its parsed slide model.
type Presentation struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"ownerId"`
	ProjectID string     `json:"projectId"`
	Filename  string     `json:"filename"`
	SourceKey string     `json:"sourceKey"`
	SizeBytes int64      `json:"sizeBytes"`
	Model     SlideModel `json:"model"`
	CreatedAt time.Time  `json:"createdAt"`
}

// SlideModel is the structured result of PPTX ingestion.
type SlideModel struct {
	Slides   []Slide  `json:"slides"`
	Assets   Assets   `json:"assets"`
	Metadata Metadata `json:"metadata"`
	Timeline Timeline `json:"timeline"`
}

// TotalDuration sums the slide durations in seconds.
func (m SlideModel) TotalDuration() int {
	total := 0
	for _, s := range m.Slides {
		total += s.Duration
	}
	return total
}

// Slide is one parsed slide
type Slide struct {
	Number     int         `json:"number"`
	Title      string      `json:"title"`
	Layout     string      `json:"layout"`
	Elements   []Element   `json:"elements"`
	Background *Background `json:"background,omitempty"`
	Duration   int         `json:"duration"`
	Transition Transition  `json:"transition"`
	Notes      string      `json:"notes,omitempty"`
}

// Element is a positioned piece of slide content
type Element struct {
	ID       string      `json:"id"`
	Type     ElementType `json:"type"`
	Content  string      `json:"content,omitempty"`
	Position Position    `json:"position"`
}

// Position in pixels at 96 DPI
type Position struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Background fill of a slide
type Background struct {
	Type  string `json:"type"` // color, image or gradient
	Value string `json:"value"`
}

// Transition into a slide
type Transition struct {
	Type     string  `json:"type"`
	Duration float64 `json:"duration"`
}

// Assets lists the media files embedded in the package
type Assets struct {
	Images []Asset `json:"images"`
	Videos []Asset `json:"videos"`
	Audio  []Asset `json:"audio"`
}

// Asset is one embedded media file
type Asset struct {
	Path        string `json:"path"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Metadata read from docProps and the presentation part
type Metadata struct {
	Title       string     `json:"title"`
	Author      string     `json:"author,omitempty"`
	Subject     string     `json:"subject,omitempty"`
	Application string     `json:"application,omitempty"`
	SlideCount  int        `json:"slideCount"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	ModifiedAt  *time.Time `json:"modifiedAt,omitempty"`
}

// Timeline places every slide on the video's time axis
type Timeline struct {
	TotalDuration int     `json:"totalDuration"`
	Scenes        []Scene `json:"scenes"`
}

// Scene is one slide on the timeline, in seconds
type Scene struct {
	SlideNumber int        `json:"slideNumber"`
	Start       int        `json:"start"`
	Duration    int        `json:"duration"`
	Transition  Transition `json:"transition"`
}
