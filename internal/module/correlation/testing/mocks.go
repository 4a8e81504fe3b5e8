package testing

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/resellkit/correlate/internal/module/correlation/domain"
	"github.com/resellkit/correlate/pkg/models"
)

// MockCatalogClient はテスト用のモックCatalogClientです
type MockCatalogClient struct {
	LookupByIDsFunc        func(ctx context.Context, asins []string) ([]models.ProductDescriptor, error)
	SearchByAttributesFunc func(ctx context.Context, brand string, categoryID int64, limit int) ([]string, error)
}

func (m *MockCatalogClient) LookupByIDs(ctx context.Context, asins []string) ([]models.ProductDescriptor, error) {
	if m.LookupByIDsFunc != nil {
		return m.LookupByIDsFunc(ctx, asins)
	}
	return nil, nil
}

func (m *MockCatalogClient) SearchByAttributes(ctx context.Context, brand string, categoryID int64, limit int) ([]string, error) {
	if m.SearchByAttributesFunc != nil {
		return m.SearchByAttributesFunc(ctx, brand, categoryID, limit)
	}
	return nil, nil
}

// MockSimilarityJudge はテスト用のモックSimilarityJudgeです
type MockSimilarityJudge struct {
	JudgeFunc func(ctx context.Context, seedText, candidateText, instructionOverride string) (bool, error)
}

func (m *MockSimilarityJudge) Judge(ctx context.Context, seedText, candidateText, instructionOverride string) (bool, error) {
	if m.JudgeFunc != nil {
		return m.JudgeFunc(ctx, seedText, candidateText, instructionOverride)
	}
	return false, nil
}

// MockCorrelationRepository はテスト用のモックCorrelationRepositoryです
type MockCorrelationRepository struct {
	UpsertManyFunc  func(ctx context.Context, records []models.CorrelationRecord) (int, error)
	QueryBySeedFunc func(ctx context.Context, seedASIN, ownerID string) ([]models.CorrelationRecord, error)
}

func (m *MockCorrelationRepository) UpsertMany(ctx context.Context, records []models.CorrelationRecord) (int, error) {
	if m.UpsertManyFunc != nil {
		return m.UpsertManyFunc(ctx, records)
	}
	return len(records), nil
}

func (m *MockCorrelationRepository) QueryBySeed(ctx context.Context, seedASIN, ownerID string) ([]models.CorrelationRecord, error) {
	if m.QueryBySeedFunc != nil {
		return m.QueryBySeedFunc(ctx, seedASIN, ownerID)
	}
	return nil, nil
}

// MockJobRepository はテスト用のモックJobRepositoryです
// Funcフィールドが未設定の場合はメモリ上のマップで動作します
type MockJobRepository struct {
	CreateFunc     func(ctx context.Context, job *models.CorrelationJob) error
	GetByIDFunc    func(ctx context.Context, id uuid.UUID) (*models.CorrelationJob, error)
	UpdateFunc     func(ctx context.Context, job *models.CorrelationJob) error
	FindActiveFunc func(ctx context.Context, seedASIN, ownerID string) (*models.CorrelationJob, error)

	// mu はバックグラウンドランからの書き込みと競合しないように守ります
	mu   sync.Mutex
	Jobs map[uuid.UUID]*models.CorrelationJob
}

func (m *MockJobRepository) store(job *models.CorrelationJob) {
	if m.Jobs == nil {
		m.Jobs = make(map[uuid.UUID]*models.CorrelationJob)
	}
	copied := *job
	m.Jobs[job.ID] = &copied
}

func (m *MockJobRepository) Create(ctx context.Context, job *models.CorrelationJob) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(job)
	return nil
}

func (m *MockJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CorrelationJob, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.Jobs[id]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, domain.ErrJobNotFound
}

func (m *MockJobRepository) Update(ctx context.Context, job *models.CorrelationJob) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(job)
	return nil
}

func (m *MockJobRepository) FindActive(ctx context.Context, seedASIN, ownerID string) (*models.CorrelationJob, error) {
	if m.FindActiveFunc != nil {
		return m.FindActiveFunc(ctx, seedASIN, ownerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.Jobs {
		if job.SeedASIN == seedASIN && job.OwnerID == ownerID && !job.Status.Terminal() {
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}
