package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/estudioia/videos-api/internal/backoff"
	"github.com/estudioia/videos-api/internal/client"
	"github.com/estudioia/videos-api/internal/ingest"
	"github.com/estudioia/videos-api/internal/model"
	"github.com/estudioia/videos-api/internal/store"
)

const (
	pptxContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	sourceURLExpiry = time.Hour
)

// PresentationService stores uploaded decks and turns them into slide models
type PresentationService struct {
	presentations store.PresentationStore
	directory     store.ProjectDirectory
	storage       client.StorageClient
	parser        *ingest.Parser
	maxBytes      int64
	retry         backoff.Policy
	log           logrus.FieldLogger
	newID         func() string
}

func NewPresentationService(presentations store.PresentationStore, directory store.ProjectDirectory, storage client.StorageClient, maxUploadMB int, log logrus.FieldLogger) *PresentationService {
	if maxUploadMB <= 0 {
		maxUploadMB = 100
	}
	return &PresentationService{
		presentations: presentations,
		directory:     directory,
		storage:       storage,
		parser:        ingest.NewParser(log),
		maxBytes:      int64(maxUploadMB) << 20,
		retry:         backoff.Policy{Attempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second},
		log:           log.WithField("component", "presentation_service"),
		newID:         func() string { return uuid.New().String() },
	}
}

// Ingest parses an uploaded PPTX, keeps the original in object storage and
// records the slide model.
func (s *PresentationService) Ingest(ctx context.Context, ownerID, projectID, filename string, data []byte) (*model.PresentationResponse, error) {
	if !strings.EqualFold(path.Ext(filename), ".pptx") {
		return nil, &model.ValidationError{
			Message: "only .pptx presentations are supported",
			Fields:  map[string]string{"file": "extension"},
		}
	}
	if len(data) == 0 {
		return nil, &model.ValidationError{Message: "file is empty", Fields: map[string]string{"file": "required"}}
	}
	if int64(len(data)) > s.maxBytes {
		return nil, &model.ValidationError{
			Message: fmt.Sprintf("file exceeds %d MB", s.maxBytes>>20),
			Fields:  map[string]string{"file": "max"},
		}
	}
	if s.directory != nil {
		ok, err := s.directory.IsCollaborator(ctx, projectID, ownerID)
		if err != nil {
			return nil, fmt.Errorf("failed to check project access: %w", err)
		}
		if !ok {
			return nil, &model.ForbiddenError{Resource: "project", ID: projectID}
		}
	}

	deck, err := s.parser.Parse(data)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidPackage) {
			return nil, &model.ValidationError{
				Message: "file is not a valid PPTX presentation",
				Fields:  map[string]string{"file": "pptx"},
			}
		}
		return nil, fmt.Errorf("failed to parse presentation: %w", err)
	}

	id := s.newID()
	key := fmt.Sprintf("presentations/%s/%s/%s.pptx", ownerID, projectID, id)

	var sourceURL string
	_, err = backoff.Retry(ctx, s.retry, func(ctx context.Context) error {
		var serr error
		sourceURL, serr = s.storage.Save(ctx, key, data, pptxContentType)
		return serr
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to store presentation: %w", err)
	}

	p := &model.Presentation{
		ID:        id,
		OwnerID:   ownerID,
		ProjectID: projectID,
		Filename:  path.Base(filename),
		SourceKey: key,
		SizeBytes: int64(len(data)),
		Model:     *deck,
	}
	if err := s.presentations.SavePresentation(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save presentation: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"presentation_id": id,
		"project_id":      projectID,
		"slides":          len(deck.Slides),
	}).Info("Presentation ingested")

	return toPresentationResponse(p, sourceURL), nil
}

// Get returns an ingested presentation with a short-lived download link.
func (s *PresentationService) Get(ctx context.Context, id, requester string) (*model.PresentationResponse, error) {
	p, err := s.presentations.GetPresentation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, s.directory, "presentation", p.ID, p.OwnerID, p.ProjectID, requester); err != nil {
		return nil, err
	}

	url, err := s.storage.GetSignedURL(ctx, p.SourceKey, sourceURLExpiry)
	if err != nil {
		s.log.WithError(err).WithField("presentation_id", id).Warn("Failed to sign source URL")
		url = ""
	}
	return toPresentationResponse(p, url), nil
}

func toPresentationResponse(p *model.Presentation, sourceURL string) *model.PresentationResponse {
	return &model.PresentationResponse{
		ID:         p.ID,
		ProjectID:  p.ProjectID,
		Filename:   p.Filename,
		SourceURL:  sourceURL,
		SlideCount: len(p.Model.Slides),
		Duration:   p.Model.TotalDuration(),
		Model:      p.Model,
		CreatedAt:  p.CreatedAt,
	}
}
