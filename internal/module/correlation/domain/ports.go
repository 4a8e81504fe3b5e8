package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/resellkit/correlate/pkg/models"
)

// CatalogClient は外部カタログ参照サービスへのポート
type CatalogClient interface {
	// LookupByIDs はASINのリストから商品情報を一括取得します
	// 見つからなかったASINは結果から単に欠落します（エラーにはなりません）
	LookupByIDs(ctx context.Context, asins []string) ([]models.ProductDescriptor, error)

	// SearchByAttributes はブランドとカテゴリで商品を検索し、ASINのリストを返します
	SearchByAttributes(ctx context.Context, brand string, categoryID int64, limit int) ([]string, error)
}

// SimilarityJudge は類似判定プロバイダへのポート
// instructionOverride が空でない場合、判定基準の既定文面を置き換えます
type SimilarityJudge interface {
	Judge(ctx context.Context, seedText, candidateText, instructionOverride string) (bool, error)
}

// CorrelationRepository は承認済み関連付けの永続化ポート
type CorrelationRepository interface {
	// UpsertMany は関連付けを一括upsertし、書き込んだ件数を返します
	// (owner_id, seed_asin, candidate_asin) の組で重複排除されます
	UpsertMany(ctx context.Context, records []models.CorrelationRecord) (int, error)

	// QueryBySeed はシードに対する既存の関連付けを返します
	QueryBySeed(ctx context.Context, seedASIN, ownerID string) ([]models.CorrelationRecord, error)
}

// JobRepository は関連付けジョブレコードの永続化ポート
type JobRepository interface {
	Create(ctx context.Context, job *models.CorrelationJob) error

	// GetByID はジョブを取得します。存在しない場合はErrJobNotFoundを返します
	GetByID(ctx context.Context, id uuid.UUID) (*models.CorrelationJob, error)

	// Update は状態と各カウントを書き戻します
	Update(ctx context.Context, job *models.CorrelationJob) error

	// FindActive は未終了（pending/processing）のジョブを返します
	// 存在しない場合は (nil, nil) を返します
	FindActive(ctx context.Context, seedASIN, ownerID string) (*models.CorrelationJob, error)
}
