package store

import (
	"context"
	"encoding/json"
	"fmt"

	postgrest "github.com/supabase-community/postgrest-go"
)

const collaboratorsTable = "project_collaborators"

type collaboratorRow struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
}

// SupabaseDirectory reads project membership from the main application's
// Supabase database through PostgREST.
type SupabaseDirectory struct {
	client *postgrest.Client
}

// NewSupabaseDirectory creates a directory bound to the project's REST endpoint
func NewSupabaseDirectory(url, serviceKey string) (*SupabaseDirectory, error) {
	client := postgrest.NewClient(url+"/rest/v1", "", map[string]string{
		"apikey":        serviceKey,
		"Authorization": fmt.Sprintf("Bearer %s", serviceKey),
	})
	if client.ClientError != nil {
		return nil, fmt.Errorf("failed to initialize Supabase client: %w", client.ClientError)
	}
	return &SupabaseDirectory{client: client}, nil
}

// IsCollaborator reports whether userID is listed on projectID.
// postgrest-go has no context support; ctx is checked before the call only.
func (d *SupabaseDirectory) IsCollaborator(ctx context.Context, projectID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	body, _, err := d.client.From(collaboratorsTable).
		Select("project_id,user_id", "", false).
		Eq("project_id", projectID).
		Eq("user_id", userID).
		Limit(1, "").
		Execute()
	if err != nil {
		return false, fmt.Errorf("failed to query collaborators: %w", err)
	}

	var rows []collaboratorRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return false, fmt.Errorf("failed to decode collaborators: %w", err)
	}
	return len(rows) > 0, nil
}

// ProjectsFor lists the projects userID collaborates on.
func (d *SupabaseDirectory) ProjectsFor(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, _, err := d.client.From(collaboratorsTable).
		Select("project_id", "", false).
		Eq("user_id", userID).
		Order("project_id", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query collaborators: %w", err)
	}

	var rows []collaboratorRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode collaborators: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ProjectID)
	}
	return ids, nil
}
