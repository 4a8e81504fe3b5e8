package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resellkit/correlate/internal/module/correlation/domain"
	"github.com/resellkit/correlate/pkg/models"
)

// JobRepository は関連付けジョブレコードのデータベース操作を提供します
type JobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository は新しいJobRepositoryを作成します
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `id, seed_asin, owner_id, status, total_count, processed_count,
	approved_count, rejected_count, error_message, created_at, updated_at, completed_at`

// Create はジョブレコードを作成します
func (r *JobRepository) Create(ctx context.Context, job *models.CorrelationJob) error {
	query := `
		INSERT INTO correlation_jobs (
			id, seed_asin, owner_id, status, total_count, processed_count,
			approved_count, rejected_count, error_message, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.SeedASIN,
		job.OwnerID,
		string(job.Status),
		job.TotalCount,
		job.ProcessedCount,
		job.ApprovedCount,
		job.RejectedCount,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		// 部分一意インデックスにより未終了ジョブの重複作成は弾かれる
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: seed %s", domain.ErrJobAlreadyActive, job.SeedASIN)
		}
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetByID はジョブを取得します。存在しない場合はErrJobNotFoundを返します
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CorrelationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM correlation_jobs WHERE id = $1`

	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// Update は状態と各カウントを書き戻します
func (r *JobRepository) Update(ctx context.Context, job *models.CorrelationJob) error {
	query := `
		UPDATE correlation_jobs
		SET status = $2, total_count = $3, processed_count = $4, approved_count = $5,
		    rejected_count = $6, error_message = $7, updated_at = $8, completed_at = $9
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		job.ID,
		string(job.Status),
		job.TotalCount,
		job.ProcessedCount,
		job.ApprovedCount,
		job.RejectedCount,
		job.ErrorMessage,
		job.UpdatedAt,
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, job.ID)
	}
	return nil
}

// FindActive は同一(owner, seed)の未終了ジョブを返します。なければ(nil, nil)
func (r *JobRepository) FindActive(ctx context.Context, seedASIN, ownerID string) (*models.CorrelationJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM correlation_jobs
		WHERE seed_asin = $1 AND owner_id = $2 AND status IN ($3, $4)
		ORDER BY created_at DESC
		LIMIT 1
	`

	job, err := scanJob(r.pool.QueryRow(ctx, query, seedASIN, ownerID,
		string(models.JobStatusPending), string(models.JobStatusProcessing)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active job: %w", err)
	}
	return job, nil
}

// scanJob は1行をCorrelationJobへ読み取ります
func scanJob(row pgx.Row) (*models.CorrelationJob, error) {
	var job models.CorrelationJob
	var status string
	if err := row.Scan(
		&job.ID,
		&job.SeedASIN,
		&job.OwnerID,
		&status,
		&job.TotalCount,
		&job.ProcessedCount,
		&job.ApprovedCount,
		&job.RejectedCount,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	); err != nil {
		return nil, err
	}
	job.Status = models.JobStatus(status)
	return &job, nil
}

// インターフェース実装の確認
var _ domain.JobRepository = (*JobRepository)(nil)
