package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/resellkit/correlate/internal/module/correlation/domain"
	"github.com/resellkit/correlate/pkg/models"
)

// StaleProcessingCutoff は更新が途絶えたprocessingジョブを停滞とみなす閾値
const StaleProcessingCutoff = 30 * time.Minute

// Orchestrator は関連付けジョブの受付とバックグラウンド実行を統括します
// Pending -> Processing -> {Complete, Error} の状態機械を駆動し、
// 同一ジョブIDに対する実行は常に1つに保たれます（ジョブIDは投入ごとに採番）
type Orchestrator struct {
	// ドメインポート
	catalog         domain.CatalogClient
	judge           domain.SimilarityJudge
	correlationRepo domain.CorrelationRepository
	jobRepo         domain.JobRepository

	// 技術基盤
	pipeline PipelineConfig
	logger   *slog.Logger

	// wg は実行中のバックグラウンドランを追跡します（シャットダウン待機用）
	wg sync.WaitGroup

	// now はテストで時刻を差し替えるためのフック
	now func() time.Time
}

// PipelineConfig はパイプライン全体の調整値
type PipelineConfig struct {
	Collector        CollectorConfig
	JudgeConcurrency int
}

// DefaultPipelineConfig はデフォルトのパイプライン設定
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Collector:        DefaultCollectorConfig(),
		JudgeConcurrency: 5,
	}
}

// NewOrchestrator は新しいOrchestratorを作成します
func NewOrchestrator(
	catalog domain.CatalogClient,
	judge domain.SimilarityJudge,
	correlationRepo domain.CorrelationRepository,
	jobRepo domain.JobRepository,
	pipeline PipelineConfig,
	logger *slog.Logger,
) *Orchestrator {
	if pipeline.JudgeConcurrency <= 0 {
		pipeline.JudgeConcurrency = 5
	}
	return &Orchestrator{
		catalog:         catalog,
		judge:           judge,
		correlationRepo: correlationRepo,
		jobRepo:         jobRepo,
		pipeline:        pipeline,
		logger:          logger,
		now:             time.Now,
	}
}

// Submit はジョブを受け付け、バックグラウンド実行を開始して即座にジョブを返します
// 呼び出し側はパイプラインの完了を待ちません
// ASIN形式の検証は同期的に行われ、不正な場合はErrInvalidASINを返します
// 同一(owner, seed)の未終了ジョブがある場合はErrJobAlreadyActiveを返します
func (o *Orchestrator) Submit(ctx context.Context, seedASIN, ownerID, instructionOverride string) (*models.CorrelationJob, error) {
	if !models.ValidASIN(seedASIN) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidASIN, seedASIN)
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner ID is required", domain.ErrInvalidASIN)
	}

	active, err := o.jobRepo.FindActive(ctx, seedASIN, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for active job: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("%w: job %s", domain.ErrJobAlreadyActive, active.ID)
	}

	now := o.now()
	job := &models.CorrelationJob{
		ID:        uuid.New(),
		SeedASIN:  seedASIN,
		OwnerID:   ownerID,
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job record: %w", err)
	}

	o.logger.Info("correlation job accepted", "jobID", job.ID, "seed", seedASIN, "owner", ownerID)

	// HTTP境界から切り離したコンテキストで実行する
	// （レスポンス返却後のキャンセルがパイプラインに波及しないように）
	runCtx := context.WithoutCancel(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("correlation run panicked", "jobID", job.ID, "panic", r)
				o.markError(runCtx, job, fmt.Sprintf("internal error: %v", r))
			}
		}()

		if err := o.run(runCtx, job, instructionOverride); err != nil {
			// runの失敗は必ずジョブレコードに書き戻す（呼び出し側へは伝播しない）
			o.markError(runCtx, job, err.Error())
		}
	}()

	return job, nil
}

// Wait は実行中のすべてのバックグラウンドランの完了を待ちます（シャットダウン用）
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// run はパイプライン本体を実行します
// Collect -> Evaluate -> Persist -> Finalize の順で進み、
// 失敗時はエラーを返して呼び出し元の境界でジョブに記録されます
func (o *Orchestrator) run(ctx context.Context, job *models.CorrelationJob, instructionOverride string) error {
	startTime := o.now()

	job.Status = models.JobStatusProcessing
	job.UpdatedAt = o.now()
	if err := o.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}

	// 1. 候補収集
	collector := NewCollector(o.catalog, o.pipeline.Collector, o.logger)
	result, err := collector.Collect(ctx, job.SeedASIN)
	if err != nil {
		if errors.Is(err, domain.ErrSeedNotFound) {
			return fmt.Errorf("product %s not found in catalog", job.SeedASIN)
		}
		return err
	}

	variationCount := 0
	for _, cand := range result.Candidates {
		if cand.Origin == models.OriginVariation {
			variationCount++
		}
	}

	job.TotalCount = len(result.Candidates)
	job.UpdatedAt = o.now()
	if err := o.jobRepo.Update(ctx, job); err != nil {
		o.logger.Warn("failed to write total count", "jobID", job.ID, "error", err)
	}

	// 2. 類似判定（進捗はウィンドウ完了ごとに書き戻す）
	evaluator := NewEvaluator(o.judge, EvaluatorConfig{
		Concurrency:         o.pipeline.JudgeConcurrency,
		InstructionOverride: instructionOverride,
	}, o.logger)
	evaluator.SetProgressCallback(func(p EvalProgress) {
		job.ProcessedCount = variationCount + p.Completed
		job.ApprovedCount = variationCount + p.Approved
		job.RejectedCount = p.Rejected
		job.UpdatedAt = o.now()
		if err := o.jobRepo.Update(ctx, job); err != nil {
			o.logger.Warn("failed to write progress", "jobID", job.ID, "error", err)
		}
	})

	approved := evaluator.Evaluate(ctx, result.Seed, result.Candidates)

	// 3. 承認済み候補の一括永続化
	records := buildRecords(job.OwnerID, result.Seed, approved)
	persisted := 0
	if len(records) > 0 {
		persisted, err = o.correlationRepo.UpsertMany(ctx, records)
		if err != nil {
			// 途中経過のカウントを残してエラー終了させる（呼び出し側が再投入できる）
			job.ProcessedCount = job.TotalCount
			job.ApprovedCount = len(approved)
			job.RejectedCount = job.TotalCount - len(approved)
			return fmt.Errorf("failed to persist correlations: %w", err)
		}
	}

	// 4. 完了
	now := o.now()
	job.Status = models.JobStatusComplete
	job.ProcessedCount = job.TotalCount
	job.ApprovedCount = persisted
	job.RejectedCount = job.TotalCount - persisted
	job.ErrorMessage = ""
	job.UpdatedAt = now
	job.CompletedAt = &now
	if err := o.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}

	o.logger.Info("correlation job completed",
		"jobID", job.ID,
		"seed", job.SeedASIN,
		"total", job.TotalCount,
		"approved", job.ApprovedCount,
		"rejected", job.RejectedCount,
		"duration", o.now().Sub(startTime).Round(time.Millisecond),
	)

	return nil
}

// markError はジョブを終了状態errorへ遷移させます
// バックグラウンドランからの唯一のエラー出口であり、失敗してもログに留めます
func (o *Orchestrator) markError(ctx context.Context, job *models.CorrelationJob, message string) {
	now := o.now()
	job.Status = models.JobStatusError
	job.ErrorMessage = message
	job.UpdatedAt = now
	job.CompletedAt = &now
	if err := o.jobRepo.Update(ctx, job); err != nil {
		o.logger.Error("failed to write terminal error status", "jobID", job.ID, "error", err)
	}
}

// GetStatus はジョブの現在状態を返します（副作用なし）
// 更新が長時間途絶えたprocessingジョブには停滞の注記を付けます
func (o *Orchestrator) GetStatus(ctx context.Context, jobID uuid.UUID) (*models.CorrelationJob, error) {
	job, err := o.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == models.JobStatusProcessing && o.now().Sub(job.UpdatedAt) > StaleProcessingCutoff {
		job.ErrorMessage = fmt.Sprintf("no progress since %s; the run may have been lost", job.UpdatedAt.Format(time.RFC3339))
	}

	return job, nil
}

// CheckExisting はシードに対する既存の関連付けを返します（パイプラインは起動しません）
func (o *Orchestrator) CheckExisting(ctx context.Context, seedASIN, ownerID string) ([]models.CorrelationRecord, error) {
	if !models.ValidASIN(seedASIN) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidASIN, seedASIN)
	}
	return o.correlationRepo.QueryBySeed(ctx, seedASIN, ownerID)
}

// buildRecords は承認済み候補から永続化レコードを組み立てます
func buildRecords(ownerID string, seed models.ProductDescriptor, approved []models.Candidate) []models.CorrelationRecord {
	records := make([]models.CorrelationRecord, 0, len(approved))
	for _, cand := range approved {
		records = append(records, models.CorrelationRecord{
			OwnerID:           ownerID,
			SeedASIN:          seed.ASIN,
			CandidateASIN:     cand.ASIN,
			CandidateTitle:    cand.Title,
			CandidateImageURL: cand.ImageURL,
			SeedImageURL:      seed.ImageURL,
			Origin:            cand.Origin,
			CandidateURL:      cand.SourceURL,
			SourceTag:         "correlation-engine",
		})
	}
	return records
}
