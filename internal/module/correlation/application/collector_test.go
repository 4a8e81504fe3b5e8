package application_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resellkit/correlate/internal/module/correlation/application"
	"github.com/resellkit/correlate/internal/module/correlation/domain"
	testutil "github.com/resellkit/correlate/internal/module/correlation/testing"
	"github.com/resellkit/correlate/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// catalogWithProducts はASINごとの商品マップと検索結果からモックを組み立てます
func catalogWithProducts(products map[string]models.ProductDescriptor, searchResult []string, searchErr error) *testutil.MockCatalogClient {
	return &testutil.MockCatalogClient{
		LookupByIDsFunc: func(ctx context.Context, asins []string) ([]models.ProductDescriptor, error) {
			var found []models.ProductDescriptor
			for _, asin := range asins {
				if p, ok := products[asin]; ok {
					found = append(found, p)
				}
			}
			return found, nil
		},
		SearchByAttributesFunc: func(ctx context.Context, brand string, categoryID int64, limit int) ([]string, error) {
			if searchErr != nil {
				return nil, searchErr
			}
			return searchResult, nil
		},
	}
}

func TestCollector_Collect_VariationsAndSimilar(t *testing.T) {
	// Setup
	ctx := context.Background()

	seed := testutil.TestProduct("B01KJEOCDW", "LEGO Creator Set", "LEGO", 165793011)
	seed.VariationASINs = []string{"B01VARAAAA", "B01VARBBBB"}

	products := map[string]models.ProductDescriptor{
		"B01KJEOCDW": seed,
		"B01VARAAAA": testutil.TestProduct("B01VARAAAA", "LEGO Creator Set (Red)", "LEGO", 165793011),
		"B01VARBBBB": testutil.TestProduct("B01VARBBBB", "LEGO Creator Set (Blue)", "LEGO", 165793011),
		"B01SIMAAAA": testutil.TestProduct("B01SIMAAAA", "LEGO City Set", "LEGO", 165793011),
		"B01SIMBBBB": testutil.TestProduct("B01SIMBBBB", "LEGO Friends Set", "LEGO", 165793011),
	}
	catalog := catalogWithProducts(products, []string{"B01SIMAAAA", "B01SIMBBBB"}, nil)

	collector := application.NewCollector(catalog, application.DefaultCollectorConfig(), testLogger())

	// Execute
	result, err := collector.Collect(ctx, "B01KJEOCDW")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "B01KJEOCDW", result.Seed.ASIN)
	require.Len(t, result.Candidates, 4)

	// バリエーションが先、類似候補が後
	assert.Equal(t, models.OriginVariation, result.Candidates[0].Origin)
	assert.Equal(t, models.OriginVariation, result.Candidates[1].Origin)
	assert.Equal(t, models.OriginSimilar, result.Candidates[2].Origin)
	assert.Equal(t, models.OriginSimilar, result.Candidates[3].Origin)
}

func TestCollector_Collect_DedupAgainstVariations(t *testing.T) {
	// Setup: 属性検索がシードとバリエーションXを返しても、類似候補には現れない
	ctx := context.Background()

	seed := testutil.TestProduct("B01KJEOCDW", "LEGO Creator Set", "LEGO", 165793011)
	seed.VariationASINs = []string{"B01VARAAAA", "B01VARBBBB"}

	products := map[string]models.ProductDescriptor{
		"B01KJEOCDW": seed,
		"B01VARAAAA": testutil.TestProduct("B01VARAAAA", "LEGO Creator Set (Red)", "LEGO", 165793011),
		"B01VARBBBB": testutil.TestProduct("B01VARBBBB", "LEGO Creator Set (Blue)", "LEGO", 165793011),
		"B01SIMAAAA": testutil.TestProduct("B01SIMAAAA", "LEGO City Set", "LEGO", 165793011),
	}
	search := []string{"B01VARAAAA", "B01KJEOCDW", "B01SIMAAAA", "B01SIMAAAA"}
	catalog := catalogWithProducts(products, search, nil)

	collector := application.NewCollector(catalog, application.DefaultCollectorConfig(), testLogger())

	// Execute
	result, err := collector.Collect(ctx, "B01KJEOCDW")

	// Assert: 同じASINが両方の由来に現れない
	require.NoError(t, err)
	seen := make(map[string]models.Origin)
	for _, cand := range result.Candidates {
		prev, dup := seen[cand.ASIN]
		assert.False(t, dup, "ASIN %s appears as both %s and %s", cand.ASIN, prev, cand.Origin)
		seen[cand.ASIN] = cand.Origin
	}
	assert.Equal(t, models.OriginVariation, seen["B01VARAAAA"])
	assert.Equal(t, models.OriginSimilar, seen["B01SIMAAAA"])
	assert.NotContains(t, seen, "B01KJEOCDW")
}

func TestCollector_Collect_SeedNotFound(t *testing.T) {
	// Setup
	ctx := context.Background()
	catalog := catalogWithProducts(map[string]models.ProductDescriptor{}, nil, nil)
	collector := application.NewCollector(catalog, application.DefaultCollectorConfig(), testLogger())

	// Execute
	result, err := collector.Collect(ctx, "B000000000")

	// Assert
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrSeedNotFound)
}

func TestCollector_Collect_NoBrandSkipsSearch(t *testing.T) {
	// Setup: ブランドなしのシードでは属性検索を一切行わない
	ctx := context.Background()

	seed := testutil.TestProduct("B01KJEOCDW", "Generic Set", "", 0)
	seed.VariationASINs = []string{"B01VARAAAA"}

	searchCalled := false
	catalog := &testutil.MockCatalogClient{
		LookupByIDsFunc: func(ctx context.Context, asins []string) ([]models.ProductDescriptor, error) {
			if len(asins) == 1 && asins[0] == "B01KJEOCDW" {
				return []models.ProductDescriptor{seed}, nil
			}
			return []models.ProductDescriptor{testutil.TestProduct("B01VARAAAA", "Generic Set (Red)", "", 0)}, nil
		},
		SearchByAttributesFunc: func(ctx context.Context, brand string, categoryID int64, limit int) ([]string, error) {
			searchCalled = true
			return nil, nil
		},
	}

	collector := application.NewCollector(catalog, application.DefaultCollectorConfig(), testLogger())

	// Execute
	result, err := collector.Collect(ctx, "B01KJEOCDW")

	// Assert
	require.NoError(t, err)
	assert.False(t, searchCalled)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, models.OriginVariation, result.Candidates[0].Origin)
}

func TestCollector_Collect_SearchFailureIsNonFatal(t *testing.T) {
	// Setup
	ctx := context.Background()

	seed := testutil.TestProduct("B01KJEOCDW", "LEGO Creator Set", "LEGO", 165793011)
	seed.VariationASINs = []string{"B01VARAAAA"}

	products := map[string]models.ProductDescriptor{
		"B01KJEOCDW": seed,
		"B01VARAAAA": testutil.TestProduct("B01VARAAAA", "LEGO Creator Set (Red)", "LEGO", 165793011),
	}
	catalog := catalogWithProducts(products, nil, errors.New("search backend down"))

	collector := application.NewCollector(catalog, application.DefaultCollectorConfig(), testLogger())

	// Execute
	result, err := collector.Collect(ctx, "B01KJEOCDW")

	// Assert: バリエーションのみで正常に返る
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, models.OriginVariation, result.Candidates[0].Origin)
}

func TestCollector_Collect_EmptyOutcomeIsValid(t *testing.T) {
	// Setup: バリエーションゼロ、検索空振り → 候補ゼロは正常
	ctx := context.Background()

	seed := testutil.TestProduct("B01KJEOCDW", "LEGO Creator Set", "LEGO", 165793011)
	catalog := catalogWithProducts(map[string]models.ProductDescriptor{"B01KJEOCDW": seed}, nil, nil)

	collector := application.NewCollector(catalog, application.DefaultCollectorConfig(), testLogger())

	// Execute
	result, err := collector.Collect(ctx, "B01KJEOCDW")

	// Assert
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
}

func TestCollector_Collect_SimilarCandidateCap(t *testing.T) {
	// Setup: 検索が上限超の結果を返しても評価対象はcapまで
	ctx := context.Background()

	seed := testutil.TestProduct("B01KJEOCDW", "LEGO Creator Set", "LEGO", 165793011)
	products := map[string]models.ProductDescriptor{"B01KJEOCDW": seed}

	var search []string
	for i := 0; i < 10; i++ {
		asin := "B01SIM" + string(rune('A'+i)) + "AAA"
		search = append(search, asin)
		products[asin] = testutil.TestProduct(asin, "LEGO Set", "LEGO", 165793011)
	}
	catalog := catalogWithProducts(products, search, nil)

	config := application.DefaultCollectorConfig()
	config.SimilarCandidateCap = 3
	collector := application.NewCollector(catalog, config, testLogger())

	// Execute
	result, err := collector.Collect(ctx, "B01KJEOCDW")

	// Assert
	require.NoError(t, err)
	assert.Len(t, result.Candidates, 3)
}
