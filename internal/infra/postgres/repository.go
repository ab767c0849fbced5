package postgres

import (
	"context"
	"fmt"

	"github.com/Copium-archive/boardcast/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ExportJobRepository struct {
	pool *pgxpool.Pool
}

func NewExportJobRepository(pool *pgxpool.Pool) *ExportJobRepository {
	return &ExportJobRepository{pool: pool}
}

func (r *ExportJobRepository) Create(ctx context.Context, job *entity.ExportJob) error {
	query := `
		INSERT INTO export_jobs (
			id, user_id, background_key, output_key, status, move_count,
			failed_stage, error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.BackgroundKey, job.OutputKey, string(job.Status),
		job.MoveCount, job.FailedStage, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert export job: %w", err)
	}
	return nil
}

func (r *ExportJobRepository) Update(ctx context.Context, job *entity.ExportJob) error {
	query := `
		UPDATE export_jobs SET
			status=$2, output_key=$3, failed_stage=$4, error_message=$5,
			updated_at=$6, completed_at=$7
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.OutputKey, job.FailedStage,
		job.ErrorMessage, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	return nil
}

func (r *ExportJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.ExportJob, error) {
	query := `
		SELECT id, user_id, background_key, output_key, status, move_count,
			failed_stage, error_message, created_at, updated_at, completed_at
		FROM export_jobs WHERE id=$1`

	job := &entity.ExportJob{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.BackgroundKey, &job.OutputKey, &status,
		&job.MoveCount, &job.FailedStage, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find export job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}
