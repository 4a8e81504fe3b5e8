package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema は関連付けエンジンが使うテーブル定義
const schema = `
CREATE TABLE IF NOT EXISTS correlation_jobs (
	id              UUID PRIMARY KEY,
	seed_asin       TEXT NOT NULL,
	owner_id        TEXT NOT NULL,
	status          TEXT NOT NULL,
	total_count     INT NOT NULL DEFAULT 0,
	processed_count INT NOT NULL DEFAULT 0,
	approved_count  INT NOT NULL DEFAULT 0,
	rejected_count  INT NOT NULL DEFAULT 0,
	error_message   TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_correlation_jobs_owner_seed
	ON correlation_jobs (owner_id, seed_asin);

-- 同一(owner, seed)の未終了ジョブは同時に1件まで
CREATE UNIQUE INDEX IF NOT EXISTS idx_correlation_jobs_one_active
	ON correlation_jobs (owner_id, seed_asin)
	WHERE status IN ('pending', 'processing');

CREATE TABLE IF NOT EXISTS correlations (
	owner_id            TEXT NOT NULL,
	seed_asin           TEXT NOT NULL,
	candidate_asin      TEXT NOT NULL,
	candidate_title     TEXT NOT NULL,
	candidate_image_url TEXT NOT NULL DEFAULT '',
	seed_image_url      TEXT NOT NULL DEFAULT '',
	origin              TEXT NOT NULL,
	candidate_url       TEXT NOT NULL DEFAULT '',
	source_tag          TEXT NOT NULL DEFAULT '',
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner_id, seed_asin, candidate_asin)
);
`

// EnsureSchema はテーブルが存在しない場合に作成します
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
