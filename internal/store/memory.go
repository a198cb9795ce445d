package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/estudioia/videos-api/internal/model"
)

// MemoryStore is an in-process JobStore, PresentationStore and
// ProjectDirectory. It backs tests and single-node development runs.
type MemoryStore struct {
	mu            sync.Mutex
	jobs          map[string]*model.Job
	presentations map[string]*model.Presentation
	collaborators map[string]map[string]bool
	now           func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:          make(map[string]*model.Job),
		presentations: make(map[string]*model.Presentation),
		collaborators: make(map[string]map[string]bool),
		now:           time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, job *model.Job) error {
	if err := validateNewJob(job); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.jobs {
		if existing.ProjectID == job.ProjectID && existing.Status.IsActive() {
			return &model.ConflictError{ProjectID: job.ProjectID, ActiveJobID: existing.ID}
		}
	}

	stored := job.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	stored.UpdatedAt = stored.CreatedAt
	s.jobs[job.ID] = stored
	job.CreatedAt = stored.CreatedAt
	job.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, &model.NotFoundError{Resource: "job", ID: id}
	}
	return job.Clone(), nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status model.JobStatus, fields StatusFields) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, &model.NotFoundError{Resource: "job", ID: id}
	}
	done, err := checkTransition(job, status)
	if err != nil {
		return nil, err
	}
	if !done {
		applyTransition(job, status, fields, s.now())
	}
	return job.Clone(), nil
}

func (s *MemoryStore) UpdateProgress(_ context.Context, id string, u ProgressUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false, &model.NotFoundError{Resource: "job", ID: id}
	}
	progress := clampProgress(u.Progress)
	if job.Status != model.JobStatusProcessing || progress < job.Progress {
		return false, nil
	}

	job.Progress = progress
	job.CurrentStage = u.Stage
	if u.ETASeconds != nil {
		eta := *u.ETASeconds
		job.ETASeconds = &eta
	}
	if u.CompletedStages != nil {
		job.CompletedStages = append([]string(nil), u.CompletedStages...)
	}
	job.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryStore) List(_ context.Context, f ListFilter, p Page) ([]*model.Job, int64, error) {
	p = p.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	visible := make(map[string]bool, len(f.VisibleProjects))
	for _, id := range f.VisibleProjects {
		visible[id] = true
	}

	var matched []*model.Job
	for _, job := range s.jobs {
		if f.VisibleTo != "" && job.OwnerID != f.VisibleTo && !visible[job.ProjectID] {
			continue
		}
		if f.ProjectID != "" && job.ProjectID != f.ProjectID {
			continue
		}
		if f.Status != "" && job.Status != f.Status {
			continue
		}
		matched = append(matched, job)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if p.Offset >= len(matched) {
		return []*model.Job{}, total, nil
	}
	end := p.Offset + p.Limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]*model.Job, 0, end-p.Offset)
	for _, job := range matched[p.Offset:end] {
		out = append(out, job.Clone())
	}
	return out, total, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return &model.NotFoundError{Resource: "job", ID: id}
	}
	delete(s.jobs, id)
	return nil
}

func (s *MemoryStore) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, job := range s.jobs {
		if job.Status.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SavePresentation(_ context.Context, p *model.Presentation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	cp := *p
	s.presentations[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPresentation(_ context.Context, id string) (*model.Presentation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.presentations[id]
	if !ok {
		return nil, &model.NotFoundError{Resource: "presentation", ID: id}
	}
	cp := *p
	return &cp, nil
}

// AddCollaborator grants userID access to projectID.
func (s *MemoryStore) AddCollaborator(projectID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collaborators[projectID] == nil {
		s.collaborators[projectID] = make(map[string]bool)
	}
	s.collaborators[projectID][userID] = true
}

func (s *MemoryStore) IsCollaborator(_ context.Context, projectID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collaborators[projectID][userID], nil
}

func (s *MemoryStore) ProjectsFor(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for projectID, users := range s.collaborators {
		if users[userID] {
			out = append(out, projectID)
		}
	}
	sort.Strings(out)
	return out, nil
}
