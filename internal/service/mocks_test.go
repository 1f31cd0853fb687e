package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/shortstat/shortstat/internal/entity"
)

type MockMappingRepository struct {
	mock.Mock
}

func (r *MockMappingRepository) Create(ctx context.Context, shortCode, originalURL string) (*entity.URLMapping, error) {
	args := r.Called(ctx, shortCode, originalURL)
	m, _ := args.Get(0).(*entity.URLMapping)
	return m, args.Error(1)
}

func (r *MockMappingRepository) FindByShortCode(ctx context.Context, shortCode string) (*entity.URLMapping, error) {
	args := r.Called(ctx, shortCode)
	m, _ := args.Get(0).(*entity.URLMapping)
	return m, args.Error(1)
}

func (r *MockMappingRepository) FindByOriginalURL(ctx context.Context, originalURL string) ([]*entity.URLMapping, error) {
	args := r.Called(ctx, originalURL)
	ms, _ := args.Get(0).([]*entity.URLMapping)
	return ms, args.Error(1)
}

func (r *MockMappingRepository) IncrementVisits(ctx context.Context, shortCode string) error {
	args := r.Called(ctx, shortCode)
	return args.Error(0)
}

func (r *MockMappingRepository) IncrementVisitsByOriginalURL(ctx context.Context, originalURL string) error {
	args := r.Called(ctx, originalURL)
	return args.Error(0)
}

type MockVisitRepository struct {
	mock.Mock
}

func (r *MockVisitRepository) Record(ctx context.Context, mappingID int64, ipAddress string, now time.Time) error {
	args := r.Called(ctx, mappingID, ipAddress, now)
	return args.Error(0)
}

func (r *MockVisitRepository) ListByMappingIDs(ctx context.Context, mappingIDs []int64) ([]*entity.Visit, error) {
	args := r.Called(ctx, mappingIDs)
	vs, _ := args.Get(0).([]*entity.Visit)
	return vs, args.Error(1)
}

func (r *MockVisitRepository) TotalByMappingIDs(ctx context.Context, mappingIDs []int64) (int64, error) {
	args := r.Called(ctx, mappingIDs)
	return args.Get(0).(int64), args.Error(1)
}

type MockResetter struct {
	mock.Mock
}

func (r *MockResetter) ResetAll(ctx context.Context) error {
	args := r.Called(ctx)
	return args.Error(0)
}

type MockCodeGenerator struct {
	mock.Mock
}

func (g *MockCodeGenerator) Generate() (string, error) {
	args := g.Called()
	return args.String(0), args.Error(1)
}
