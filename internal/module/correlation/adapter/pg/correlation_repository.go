package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resellkit/correlate/internal/module/correlation/domain"
	"github.com/resellkit/correlate/pkg/models"
)

// CorrelationRepository は承認済み関連付けのデータベース操作を提供します
type CorrelationRepository struct {
	pool *pgxpool.Pool
}

// NewCorrelationRepository は新しいCorrelationRepositoryを作成します
func NewCorrelationRepository(pool *pgxpool.Pool) *CorrelationRepository {
	return &CorrelationRepository{pool: pool}
}

// UpsertMany は関連付けを一括upsertし、書き込んだ件数を返します
// 1回のバッチ往復で全レコードを書き込みます（レコードごとの個別書き込みはしない）
func (r *CorrelationRepository) UpsertMany(ctx context.Context, records []models.CorrelationRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO correlations (
			owner_id, seed_asin, candidate_asin, candidate_title,
			candidate_image_url, seed_image_url, origin, candidate_url, source_tag, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (owner_id, seed_asin, candidate_asin) DO UPDATE SET
			candidate_title     = EXCLUDED.candidate_title,
			candidate_image_url = EXCLUDED.candidate_image_url,
			seed_image_url      = EXCLUDED.seed_image_url,
			origin              = EXCLUDED.origin,
			candidate_url       = EXCLUDED.candidate_url,
			source_tag          = EXCLUDED.source_tag,
			updated_at          = now()
	`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query,
			rec.OwnerID,
			rec.SeedASIN,
			rec.CandidateASIN,
			rec.CandidateTitle,
			rec.CandidateImageURL,
			rec.SeedImageURL,
			string(rec.Origin),
			rec.CandidateURL,
			rec.SourceTag,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	count := 0
	for range records {
		tag, err := results.Exec()
		if err != nil {
			return count, fmt.Errorf("failed to upsert correlation: %w", err)
		}
		count += int(tag.RowsAffected())
	}

	return count, nil
}

// QueryBySeed はシードに対する既存の関連付けを返します
func (r *CorrelationRepository) QueryBySeed(ctx context.Context, seedASIN, ownerID string) ([]models.CorrelationRecord, error) {
	query := `
		SELECT owner_id, seed_asin, candidate_asin, candidate_title,
		       candidate_image_url, seed_image_url, origin, candidate_url, source_tag, updated_at
		FROM correlations
		WHERE seed_asin = $1 AND owner_id = $2
		ORDER BY origin DESC, candidate_asin
	`

	rows, err := r.pool.Query(ctx, query, seedASIN, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query correlations: %w", err)
	}
	defer rows.Close()

	var records []models.CorrelationRecord
	for rows.Next() {
		var rec models.CorrelationRecord
		var origin string
		if err := rows.Scan(
			&rec.OwnerID,
			&rec.SeedASIN,
			&rec.CandidateASIN,
			&rec.CandidateTitle,
			&rec.CandidateImageURL,
			&rec.SeedImageURL,
			&origin,
			&rec.CandidateURL,
			&rec.SourceTag,
			&rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan correlation: %w", err)
		}
		rec.Origin = models.Origin(origin)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read correlations: %w", err)
	}

	return records, nil
}

// インターフェース実装の確認
var _ domain.CorrelationRepository = (*CorrelationRepository)(nil)
