package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resellkit/correlate/internal/module/correlation/domain"
	"github.com/resellkit/correlate/pkg/models"
)

// CollectorConfig は候補収集の調整値
type CollectorConfig struct {
	// VariationBatchSize はバリエーション一括取得のバッチサイズ（プロバイダ上限）
	VariationBatchSize int
	// SearchResultLimit は属性検索の取得上限
	SearchResultLimit int
	// SimilarCandidateCap は判定コストを抑えるための類似候補の上限
	SimilarCandidateCap int
}

// DefaultCollectorConfig はデフォルトの収集設定
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		VariationBatchSize:  100,
		SearchResultLimit:   50,
		SimilarCandidateCap: 30,
	}
}

// CollectResult は候補収集の結果
type CollectResult struct {
	// Seed はシード商品の情報
	Seed models.ProductDescriptor
	// Candidates はバリエーション、類似候補の順に並んだ候補リスト
	Candidates []models.Candidate
}

// Collector はシードASINから候補商品の集合を構築します
type Collector struct {
	catalog domain.CatalogClient
	config  CollectorConfig
	logger  *slog.Logger
}

// NewCollector は新しいCollectorを作成します
func NewCollector(catalog domain.CatalogClient, config CollectorConfig, logger *slog.Logger) *Collector {
	if config.VariationBatchSize <= 0 {
		config.VariationBatchSize = 100
	}
	if config.SearchResultLimit <= 0 {
		config.SearchResultLimit = 50
	}
	if config.SimilarCandidateCap <= 0 {
		config.SimilarCandidateCap = 30
	}
	return &Collector{
		catalog: catalog,
		config:  config,
		logger:  logger,
	}
}

// Collect はシードの商品情報とバリエーション・類似候補を収集します
// シードがカタログに存在しない場合はErrSeedNotFoundを返します
// 属性検索の失敗は致命的ではなく、バリエーションのみで続行します
func (c *Collector) Collect(ctx context.Context, seedASIN string) (*CollectResult, error) {
	// 1. シード本体の取得
	seeds, err := c.catalog.LookupByIDs(ctx, []string{seedASIN})
	if err != nil {
		return nil, fmt.Errorf("failed to look up seed %s: %w", seedASIN, err)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrSeedNotFound, seedASIN)
	}
	seed := seeds[0]

	// 2. カタログ項目が宣言するバリエーションの取得（シード自身は除外）
	// 除外集合は宣言されたASIN全体で構成する：取得に失敗・欠落した
	// バリエーションも類似候補として再登場させないため
	variationASINs := make([]string, 0, len(seed.VariationASINs))
	variationSet := make(map[string]struct{}, len(seed.VariationASINs))
	for _, asin := range seed.VariationASINs {
		if asin == seed.ASIN {
			continue
		}
		variationASINs = append(variationASINs, asin)
		variationSet[asin] = struct{}{}
	}

	variations, err := c.fetchVariations(ctx, variationASINs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch variations for %s: %w", seedASIN, err)
	}

	candidates := make([]models.Candidate, 0, len(variations))
	for _, v := range variations {
		if v.ASIN == seed.ASIN {
			continue
		}
		candidates = append(candidates, models.Candidate{ProductDescriptor: v, Origin: models.OriginVariation})
	}

	// 3. 属性検索による類似候補（ブランドとカテゴリが揃っている場合のみ）
	similar := c.collectSimilar(ctx, seed, variationSet)
	variationCount := len(candidates)
	candidates = append(candidates, similar...)

	c.logger.Info("candidate collection finished",
		"seed", seed.ASIN,
		"variations", variationCount,
		"similar", len(similar),
	)

	return &CollectResult{Seed: seed, Candidates: candidates}, nil
}

// fetchVariations はバリエーションASINの商品情報をバッチ単位で取得します
func (c *Collector) fetchVariations(ctx context.Context, asins []string) ([]models.ProductDescriptor, error) {
	if len(asins) == 0 {
		return nil, nil
	}

	var descriptors []models.ProductDescriptor
	for start := 0; start < len(asins); start += c.config.VariationBatchSize {
		end := start + c.config.VariationBatchSize
		if end > len(asins) {
			end = len(asins)
		}

		batch, err := c.catalog.LookupByIDs(ctx, asins[start:end])
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, batch...)
	}

	return descriptors, nil
}

// collectSimilar は属性検索で類似候補を収集します
// 検索や取得の失敗はジョブ全体を止めず、空リストとして扱います
func (c *Collector) collectSimilar(ctx context.Context, seed models.ProductDescriptor, variationSet map[string]struct{}) []models.Candidate {
	if seed.Brand == nil || *seed.Brand == "" || seed.CategoryID == nil {
		c.logger.Info("seed has no brand/category, skipping attribute search", "seed", seed.ASIN)
		return nil
	}

	found, err := c.catalog.SearchByAttributes(ctx, *seed.Brand, *seed.CategoryID, c.config.SearchResultLimit)
	if err != nil {
		c.logger.Warn("attribute search failed, continuing with variations only",
			"seed", seed.ASIN, "error", err)
		return nil
	}

	// シードとバリエーションを除外（同じASINが両方の由来に現れてはならない）
	filtered := make([]string, 0, len(found))
	seen := make(map[string]struct{}, len(found))
	for _, asin := range found {
		if asin == seed.ASIN {
			continue
		}
		if _, ok := variationSet[asin]; ok {
			continue
		}
		if _, ok := seen[asin]; ok {
			continue
		}
		seen[asin] = struct{}{}
		filtered = append(filtered, asin)
	}

	if len(filtered) > c.config.SimilarCandidateCap {
		filtered = filtered[:c.config.SimilarCandidateCap]
	}
	if len(filtered) == 0 {
		return nil
	}

	descriptors, err := c.catalog.LookupByIDs(ctx, filtered)
	if err != nil {
		c.logger.Warn("similar candidate fetch failed, continuing with variations only",
			"seed", seed.ASIN, "error", err)
		return nil
	}

	similar := make([]models.Candidate, 0, len(descriptors))
	for _, d := range descriptors {
		similar = append(similar, models.Candidate{ProductDescriptor: d, Origin: models.OriginSimilar})
	}
	return similar
}
