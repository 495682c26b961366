package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/meditrack/adherence-api/internal/model"
	"github.com/meditrack/adherence-api/internal/repository"
)

type medicationRepository struct {
	db *sqlx.DB
}

func NewMedicationRepository(db *sqlx.DB) repository.MedicationRepository {
	return &medicationRepository{db: db}
}

func (r *medicationRepository) Create(ctx context.Context, med *model.Medication) error {
	query := `
		INSERT INTO medications (
			id, user_id, name, dosage_amount, dosage_unit, frequency,
			instructions, prescribed_by, color, side_effects,
			schedule, dose_events, adherence_data, refill_reminder,
			start_date, end_date, is_active, created_at, updated_at
		) VALUES (
			:id, :user_id, :name, :dosage_amount, :dosage_unit, :frequency,
			:instructions, :prescribed_by, :color, :side_effects,
			:schedule, :dose_events, :adherence_data, :refill_reminder,
			:start_date, :end_date, :is_active, :created_at, :updated_at
		)
	`
	med.CreatedAt = time.Now()
	med.UpdatedAt = time.Now()

	if _, err := r.db.NamedExecContext(ctx, query, med); err != nil {
		return fmt.Errorf("failed to create medication: %w", err)
	}
	return nil
}

func (r *medicationRepository) Get(ctx context.Context, userID, id uuid.UUID) (*model.Medication, error) {
	query := `SELECT * FROM medications WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`
	var med model.Medication
	if err := r.db.GetContext(ctx, &med, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get medication: %w", err)
	}
	return &med, nil
}

func (r *medicationRepository) Update(ctx context.Context, med *model.Medication) error {
	query := `
		UPDATE medications
		SET name = :name, dosage_amount = :dosage_amount, dosage_unit = :dosage_unit,
		    frequency = :frequency, instructions = :instructions, prescribed_by = :prescribed_by,
		    color = :color, side_effects = :side_effects,
		    schedule = :schedule, dose_events = :dose_events,
		    adherence_data = :adherence_data, refill_reminder = :refill_reminder,
		    start_date = :start_date, end_date = :end_date, is_active = :is_active,
		    updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id AND deleted_at IS NULL
	`
	med.UpdatedAt = time.Now()

	result, err := r.db.NamedExecContext(ctx, query, med)
	if err != nil {
		return fmt.Errorf("failed to update medication: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *medicationRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	query := `UPDATE medications SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND user_id = $3 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *medicationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Medication, error) {
	query := `SELECT * FROM medications WHERE user_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`
	meds := make([]*model.Medication, 0)
	if err := r.db.SelectContext(ctx, &meds, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return meds, nil
}

func (r *medicationRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*model.Medication, error) {
	query := `SELECT * FROM medications WHERE user_id = $1 AND is_active = true AND deleted_at IS NULL ORDER BY created_at DESC`
	meds := make([]*model.Medication, 0)
	if err := r.db.SelectContext(ctx, &meds, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list active medications: %w", err)
	}
	return meds, nil
}

// ListActive returns every active medication across users. Used by the
// daily adherence rollup worker.
func (r *medicationRepository) ListActive(ctx context.Context) ([]*model.Medication, error) {
	query := `SELECT * FROM medications WHERE is_active = true AND deleted_at IS NULL ORDER BY user_id, created_at DESC`
	meds := make([]*model.Medication, 0)
	if err := r.db.SelectContext(ctx, &meds, query); err != nil {
		return nil, fmt.Errorf("failed to list active medications: %w", err)
	}
	return meds, nil
}
