package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resellkit/correlate/internal/interface/api"
	"github.com/resellkit/correlate/internal/module/correlation/adapter/catalog"
	"github.com/resellkit/correlate/internal/module/correlation/adapter/openai"
	"github.com/resellkit/correlate/internal/module/correlation/adapter/pg"
	"github.com/resellkit/correlate/internal/module/correlation/application"
	"github.com/resellkit/correlate/pkg/config"
	"github.com/resellkit/correlate/pkg/db"
)

// AppContext はコマンド間で共有する依存関係を保持します
type AppContext struct {
	Config       *config.Config
	DB           *db.DB
	Orchestrator *application.Orchestrator
	Server       *api.Server
	Logger       *slog.Logger
}

// NewAppContext は設定を読み込み、依存関係を組み立てます
func NewAppContext(ctx context.Context, envFilePath string) (*AppContext, error) {
	cfg, err := config.Load(envFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.Default()

	database, err := db.New(ctx, db.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pg.EnsureSchema(ctx, database.Pool); err != nil {
		database.Close()
		return nil, err
	}

	catalogClient, err := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.APIKey, cfg.Catalog.Timeout)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create catalog client: %w", err)
	}

	judge, err := openai.NewJudge(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create similarity judge: %w", err)
	}

	orchestrator := application.NewOrchestrator(
		catalogClient,
		judge,
		pg.NewCorrelationRepository(database.Pool),
		pg.NewJobRepository(database.Pool),
		application.PipelineConfig{
			Collector: application.CollectorConfig{
				VariationBatchSize:  cfg.Pipeline.VariationBatchSize,
				SearchResultLimit:   cfg.Pipeline.SearchResultLimit,
				SimilarCandidateCap: cfg.Pipeline.SimilarCandidateCap,
			},
			JudgeConcurrency: cfg.Pipeline.JudgeConcurrency,
		},
		logger,
	)

	return &AppContext{
		Config:       cfg,
		DB:           database,
		Orchestrator: orchestrator,
		Server:       api.NewServer(orchestrator, cfg.HTTP.APIToken, logger),
		Logger:       logger,
	}, nil
}

// Close は実行中のジョブを待ってから接続を閉じます
func (a *AppContext) Close() {
	a.Orchestrator.Wait()
	a.DB.Close()
}
