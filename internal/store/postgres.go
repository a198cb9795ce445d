package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/estudioia/videos-api/internal/model"
)

type jobRecord struct {
	ID              string         `gorm:"type:uuid;primaryKey"`
	OwnerID         string         `gorm:"type:text;not null"`
	ProjectID       string         `gorm:"type:text;not null"`
	PresentationID  string         `gorm:"type:uuid;not null"`
	Status          string         `gorm:"type:text;not null"`
	Priority        string         `gorm:"type:text;not null;default:'normal'"`
	Progress        int            `gorm:"not null;default:0"`
	CurrentStage    string         `gorm:"type:text;not null;default:''"`
	ETASeconds      *int           `gorm:"column:eta_seconds"`
	CompletedStages pq.StringArray `gorm:"type:text[]"`
	SettingsJSON    datatypes.JSON `gorm:"column:settings_json;type:jsonb;not null"`
	OutputURL       *string        `gorm:"type:text"`
	ErrorMessage    *string        `gorm:"type:text"`
	WebhookURL      *string        `gorm:"type:text"`
	RetryOf         *string        `gorm:"type:uuid"`
	CreatedAt       time.Time      `gorm:"type:timestamptz;not null;default:now()"`
	StartedAt       *time.Time     `gorm:"type:timestamptz"`
	CompletedAt     *time.Time     `gorm:"type:timestamptz"`
	UpdatedAt       time.Time      `gorm:"type:timestamptz;not null;default:now()"`
}

func (jobRecord) TableName() string { return "render_jobs" }

type presentationRecord struct {
	ID        string         `gorm:"type:uuid;primaryKey"`
	OwnerID   string         `gorm:"type:text;not null;index"`
	ProjectID string         `gorm:"type:text;not null"`
	Filename  string         `gorm:"type:text;not null"`
	SourceKey string         `gorm:"type:text;not null"`
	SizeBytes int64          `gorm:"not null"`
	ModelJSON datatypes.JSON `gorm:"column:model_json;type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"type:timestamptz;not null;default:now()"`
}

func (presentationRecord) TableName() string { return "presentations" }

type collaboratorRecord struct {
	ProjectID string    `gorm:"type:text;primaryKey"`
	UserID    string    `gorm:"type:text;primaryKey;index"`
	Role      string    `gorm:"type:text;not null;default:'editor'"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

func (collaboratorRecord) TableName() string { return "project_collaborators" }

// Models lists the gorm models owned by this package, for migrations.
func Models() []interface{} {
	return []interface{}{&jobRecord{}, &presentationRecord{}, &collaboratorRecord{}}
}

func toRecord(j *model.Job) (*jobRecord, error) {
	settings, err := json.Marshal(j.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	return &jobRecord{
		ID:              j.ID,
		OwnerID:         j.OwnerID,
		ProjectID:       j.ProjectID,
		PresentationID:  j.PresentationID,
		Status:          string(j.Status),
		Priority:        string(j.Priority),
		Progress:        j.Progress,
		CurrentStage:    j.CurrentStage,
		ETASeconds:      j.ETASeconds,
		CompletedStages: pq.StringArray(j.CompletedStages),
		SettingsJSON:    datatypes.JSON(settings),
		OutputURL:       nullable(j.OutputURL),
		ErrorMessage:    nullable(j.ErrorMessage),
		WebhookURL:      nullable(j.WebhookURL),
		RetryOf:         nullable(j.RetryOf),
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		UpdatedAt:       j.UpdatedAt,
	}, nil
}

func (r *jobRecord) toModel() (*model.Job, error) {
	job := &model.Job{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		ProjectID:       r.ProjectID,
		PresentationID:  r.PresentationID,
		Status:          model.JobStatus(r.Status),
		Priority:        model.Priority(r.Priority),
		Progress:        r.Progress,
		CurrentStage:    r.CurrentStage,
		ETASeconds:      r.ETASeconds,
		CompletedStages: []string(r.CompletedStages),
		OutputURL:       deref(r.OutputURL),
		ErrorMessage:    deref(r.ErrorMessage),
		WebhookURL:      deref(r.WebhookURL),
		RetryOf:         deref(r.RetryOf),
		CreatedAt:       r.CreatedAt,
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if len(r.SettingsJSON) > 0 {
		if err := json.Unmarshal(r.SettingsJSON, &job.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings of job %s: %w", r.ID, err)
		}
	}
	return job, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// PostgresStore implements JobStore, PresentationStore and ProjectDirectory on gorm.
type PostgresStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPostgresStore wraps an open gorm connection
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) Create(ctx context.Context, job *model.Job) error {
	if err := validateNewJob(job); err != nil {
		return err
	}
	now := s.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt

	rec, err := toRecord(job)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active jobRecord
		err := tx.Select("id").
			Where("project_id = ? AND status IN ?", job.ProjectID, model.ActiveJobStatuses).
			Take(&active).Error
		switch {
		case err == nil:
			return &model.ConflictError{ProjectID: job.ProjectID, ActiveJobID: active.ID}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Create(rec).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost the race against a concurrent submit; the partial unique index caught it
		return &model.ConflictError{ProjectID: job.ProjectID}
	}
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Job, error) {
	var rec jobRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &model.NotFoundError{Resource: "job", ID: id}
		}
		return nil, err
	}
	return rec.toModel()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status model.JobStatus, fields StatusFields) (*model.Job, error) {
	var out *model.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec jobRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &model.NotFoundError{Resource: "job", ID: id}
			}
			return err
		}

		job, err := rec.toModel()
		if err != nil {
			return err
		}
		done, err := checkTransition(job, status)
		if err != nil {
			return err
		}
		out = job
		if done {
			return nil
		}

		applyTransition(job, status, fields, s.now().UTC())
		return tx.Model(&jobRecord{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":        string(job.Status),
			"progress":      job.Progress,
			"current_stage": job.CurrentStage,
			"eta_seconds":   job.ETASeconds,
			"output_url":    nullable(job.OutputURL),
			"error_message": nullable(job.ErrorMessage),
			"started_at":    job.StartedAt,
			"completed_at":  job.CompletedAt,
			"updated_at":    job.UpdatedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) UpdateProgress(ctx context.Context, id string, u ProgressUpdate) (bool, error) {
	progress := clampProgress(u.Progress)
	updates := map[string]interface{}{
		"progress":      progress,
		"current_stage": u.Stage,
		"updated_at":    s.now().UTC(),
	}
	if u.ETASeconds != nil {
		updates["eta_seconds"] = *u.ETASeconds
	}
	if u.CompletedStages != nil {
		updates["completed_stages"] = pq.StringArray(u.CompletedStages)
	}

	res := s.db.WithContext(ctx).Model(&jobRecord{}).
		Where("id = ? AND status = ? AND progress <= ?", id, string(model.JobStatusProcessing), progress).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *PostgresStore) List(ctx context.Context, f ListFilter, p Page) ([]*model.Job, int64, error) {
	p = p.Normalize()

	q := s.db.WithContext(ctx).Model(&jobRecord{})
	if f.VisibleTo != "" {
		if len(f.VisibleProjects) > 0 {
			q = q.Where("owner_id = ? OR project_id IN ?", f.VisibleTo, f.VisibleProjects)
		} else {
			q = q.Where("owner_id = ?", f.VisibleTo)
		}
	}
	if f.ProjectID != "" {
		q = q.Where("project_id = ?", f.ProjectID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var recs []jobRecord
	if err := q.Order("created_at DESC").Order("id DESC").Limit(p.Limit).Offset(p.Offset).Find(&recs).Error; err != nil {
		return nil, 0, err
	}

	jobs := make([]*model.Job, 0, len(recs))
	for i := range recs {
		job, err := recs[i].toModel()
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	return jobs, total, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&jobRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &model.NotFoundError{Resource: "job", ID: id}
	}
	return nil
}

func (s *PostgresStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	terminal := []model.JobStatus{model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusCancelled}
	res := s.db.WithContext(ctx).
		Where("status IN ? AND completed_at < ?", terminal, cutoff).
		Delete(&jobRecord{})
	return res.RowsAffected, res.Error
}

func (s *PostgresStore) SavePresentation(ctx context.Context, p *model.Presentation) error {
	data, err := json.Marshal(p.Model)
	if err != nil {
		return fmt.Errorf("failed to marshal slide model: %w", err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	rec := presentationRecord{
		ID:        p.ID,
		OwnerID:   p.OwnerID,
		ProjectID: p.ProjectID,
		Filename:  p.Filename,
		SourceKey: p.SourceKey,
		SizeBytes: p.SizeBytes,
		ModelJSON: datatypes.JSON(data),
		CreatedAt: p.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *PostgresStore) GetPresentation(ctx context.Context, id string) (*model.Presentation, error) {
	var rec presentationRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &model.NotFoundError{Resource: "presentation", ID: id}
		}
		return nil, err
	}

	p := &model.Presentation{
		ID:        rec.ID,
		OwnerID:   rec.OwnerID,
		ProjectID: rec.ProjectID,
		Filename:  rec.Filename,
		SourceKey: rec.SourceKey,
		SizeBytes: rec.SizeBytes,
		CreatedAt: rec.CreatedAt,
	}
	if err := json.Unmarshal(rec.ModelJSON, &p.Model); err != nil {
		return nil, fmt.Errorf("failed to unmarshal slide model of %s: %w", rec.ID, err)
	}
	return p, nil
}

func (s *PostgresStore) IsCollaborator(ctx context.Context, projectID, userID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&collaboratorRecord{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&n).Error
	return n > 0, err
}

func (s *PostgresStore) ProjectsFor(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&collaboratorRecord{}).
		Where("user_id = ?", userID).
		Order("project_id").
		Pluck("project_id", &ids).Error
	return ids, err
}

// AddCollaborator grants userID access to projectID; repeated grants are ignored.
func (s *PostgresStore) AddCollaborator(ctx context.Context, projectID, userID, role string) error {
	rec := collaboratorRecord{ProjectID: projectID, UserID: userID, Role: role, CreatedAt: s.now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
}
