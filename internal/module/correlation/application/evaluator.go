package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/resellkit/correlate/internal/module/correlation/domain"
	"github.com/resellkit/correlate/pkg/models"
)

// EvaluatorConfig は類似判定の設定
type EvaluatorConfig struct {
	// Concurrency は判定呼び出しの同時実行数（ウィンドウ幅）
	Concurrency int
	// InstructionOverride はオーナー固有の判定基準（空なら既定の基準を使用）
	InstructionOverride string
}

// EvalProgress は評価の進捗状況
type EvalProgress struct {
	Total     int
	Completed int
	Approved  int
	Rejected  int
}

// Evaluator は候補商品をシードとの類似判定にかけ、承認されたものだけを返します
type Evaluator struct {
	judge  domain.SimilarityJudge
	config EvaluatorConfig
	logger *slog.Logger

	// onProgress はウィンドウ完了ごとに呼ばれるコールバック（省略可）
	onProgress func(EvalProgress)
}

// NewEvaluator は新しいEvaluatorを作成します
func NewEvaluator(judge domain.SimilarityJudge, config EvaluatorConfig, logger *slog.Logger) *Evaluator {
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}
	return &Evaluator{
		judge:  judge,
		config: config,
		logger: logger,
	}
}

// SetProgressCallback は進捗通知コールバックを設定します
func (e *Evaluator) SetProgressCallback(fn func(EvalProgress)) {
	e.onProgress = fn
}

// Evaluate は候補を評価し、承認された候補のみを返します
// バリエーションは判定なしで常に承認されます
// 類似候補は固定幅のウィンドウ単位で並列判定され、各ウィンドウの完了を
// 待ってから次へ進みます（下流のレート制限を守るため）
// 判定呼び出しの失敗は当該候補の却下として扱われ、バッチ全体は継続します
func (e *Evaluator) Evaluate(ctx context.Context, seed models.ProductDescriptor, candidates []models.Candidate) []models.Candidate {
	var variations, similar []models.Candidate
	for _, cand := range candidates {
		if cand.Origin == models.OriginVariation {
			variations = append(variations, cand)
		} else {
			similar = append(similar, cand)
		}
	}

	approved := make([]models.Candidate, 0, len(candidates))
	approved = append(approved, variations...)

	if len(similar) == 0 {
		return approved
	}

	seedText := describeProduct(seed)
	total := len(similar)
	completed := 0
	approvedSimilar := 0

	// 入力順を保持するためインデックスで結果を記録する
	verdicts := make([]bool, total)

	for start := 0; start < total; start += e.config.Concurrency {
		end := start + e.config.Concurrency
		if end > total {
			end = total
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(index int, cand models.Candidate) {
				defer wg.Done()

				ok, err := e.judge.Judge(ctx, seedText, describeProduct(cand.ProductDescriptor), e.config.InstructionOverride)
				if err != nil {
					// 判定失敗は却下扱い（リトライしない）
					e.logger.Warn("similarity judge call failed, treating as rejection",
						"seed", seed.ASIN, "candidate", cand.ASIN, "error", err)
					verdicts[index] = false
					return
				}
				verdicts[index] = ok
			}(i, similar[i])
		}
		wg.Wait()

		for i := start; i < end; i++ {
			completed++
			if verdicts[i] {
				approvedSimilar++
			}
		}
		if e.onProgress != nil {
			e.onProgress(EvalProgress{
				Total:     total,
				Completed: completed,
				Approved:  approvedSimilar,
				Rejected:  completed - approvedSimilar,
			})
		}
	}

	for i, cand := range similar {
		if verdicts[i] {
			approved = append(approved, cand)
		}
	}

	e.logger.Info("similarity evaluation finished",
		"seed", seed.ASIN,
		"variations", len(variations),
		"similarEvaluated", total,
		"similarApproved", approvedSimilar,
	)

	return approved
}

// describeProduct は判定プロンプトに渡す商品の説明文を組み立てます
func describeProduct(p models.ProductDescriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s", p.Title)
	if p.Brand != nil && *p.Brand != "" {
		fmt.Fprintf(&b, "\nBrand: %s", *p.Brand)
	}
	return b.String()
}
