// Package store is the Postgres-backed record store for contacts,
// opportunities, pipelines and stages.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pipeline-crm/internal/common/logger"
	"pipeline-crm/internal/models"
)

type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "store"}),
	}
}

// Ping tests the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateContact inserts a contact record and returns its generated id.
func (s *Store) CreateContact(ctx context.Context, contact *models.Contact) (string, error) {
	id := uuid.New().String()
	createdAt := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (
			id, name, phone, email, source, notes,
			preferred_language, preferred_dialect, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id,
		contact.Name,
		contact.Phone,
		contact.Email,
		contact.Source,
		contact.Notes,
		contact.PreferredLanguage,
		contact.PreferredDialect,
		createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert contact: %w", err)
	}

	s.logger.Debug("contact created", map[string]interface{}{
		"contactId": id,
		"name":      contact.Name,
	})

	return id, nil
}

// CreateOpportunity inserts an opportunity linked to a contact and stage and
// returns its generated id.
func (s *Store) CreateOpportunity(ctx context.Context, opp *models.Opportunity) (string, error) {
	id := uuid.New().String()
	createdAt := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO opportunities (
			id, name, contact_id, pipeline_id, stage_id, source, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id,
		opp.Name,
		opp.ContactID,
		opp.PipelineID,
		opp.StageID,
		opp.Source,
		createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert opportunity: %w", err)
	}

	s.logger.Debug("opportunity created", map[string]interface{}{
		"opportunityId": id,
		"contactId":     opp.ContactID,
		"stageId":       opp.StageID,
	})

	return id, nil
}

// ListStages returns a pipeline's stages ordered by position. The first
// element is the stage the wizard auto-selects when none is chosen.
func (s *Store) ListStages(ctx context.Context, pipelineID string) ([]models.Stage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pipeline_id, name, position
		FROM stages
		WHERE pipeline_id = $1
		ORDER BY position ASC`,
		pipelineID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var stages []models.Stage
	for rows.Next() {
		var st models.Stage
		if err := rows.Scan(&st.ID, &st.PipelineID, &st.Name, &st.Position); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stages = append(stages, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stages: %w", err)
	}

	return stages, nil
}

// GetPipeline returns one pipeline by id.
func (s *Store) GetPipeline(ctx context.Context, pipelineID string) (*models.Pipeline, error) {
	var p models.Pipeline
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name FROM pipelines WHERE id = $1`,
		pipelineID,
	).Scan(&p.ID, &p.Name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pipeline %s not found", pipelineID)
	}
	if err != nil {
		return nil, fmt.Errorf("query pipeline: %w", err)
	}
	return &p, nil
}
