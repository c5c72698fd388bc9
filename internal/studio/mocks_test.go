package studio

import (
	"context"
	"sync"

	"github.com/manash/azimg/internal/gallery"
	"github.com/manash/azimg/internal/provider"
	"github.com/manash/azimg/pkg/models"
)

type mockProvider struct {
	mu          sync.Mutex
	generateFn  func(ctx context.Context, req *models.GenerateRequest) (*models.Response, error)
	editFn      func(ctx context.Context, req *models.EditRequest) (*models.Response, error)
	generateReq []*models.GenerateRequest
	editReq     []*models.EditRequest
}

func (m *mockProvider) Generate(ctx context.Context, req *models.GenerateRequest) (*models.Response, error) {
	m.mu.Lock()
	m.generateReq = append(m.generateReq, req)
	m.mu.Unlock()
	if m.generateFn != nil {
		return m.generateFn(ctx, req)
	}
	return response(1700000000, 1), nil
}

func (m *mockProvider) Edit(ctx context.Context, req *models.EditRequest) (*models.Response, error) {
	m.mu.Lock()
	m.editReq = append(m.editReq, req)
	m.mu.Unlock()
	if m.editFn != nil {
		return m.editFn(ctx, req)
	}
	return response(1700000001, 1), nil
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.generateReq) + len(m.editReq)
}

type mockFactory struct {
	p       *mockProvider
	err     error
	configs []*provider.Config
}

func (f *mockFactory) New(cfg *provider.Config) (provider.Provider, error) {
	f.configs = append(f.configs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	return f.p, nil
}

type mockCostLog struct {
	entries []*gallery.CostEntry
}

func (m *mockCostLog) LogCost(_ context.Context, entry *gallery.CostEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func response(created int64, n int) *models.Response {
	resp := &models.Response{Created: created}
	for i := 0; i < n; i++ {
		resp.Images = append(resp.Images, models.NewImageResult(created, i, "aGVsbG8=", "revised"))
	}
	return resp
}
