package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/zhaocg/app-download-center/internal/modules/model"
	"github.com/zhaocg/app-download-center/internal/modules/repo"
)

// MockFileRepo is a mock implementation of repo.FileRepo
type MockFileRepo struct {
	mock.Mock
}

func (m *MockFileRepo) Create(ctx context.Context, rec *model.FileRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockFileRepo) Update(ctx context.Context, rec *model.FileRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockFileRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.FileRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FileRecord), args.Error(1)
}

func (m *MockFileRepo) GetByRelativePath(ctx context.Context, relativePath string) (*model.FileRecord, error) {
	args := m.Called(ctx, relativePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FileRecord), args.Error(1)
}

func (m *MockFileRepo) GetByShareID(ctx context.Context, shareID string) (*model.FileRecord, error) {
	args := m.Called(ctx, shareID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FileRecord), args.Error(1)
}

func (m *MockFileRepo) SetShareID(ctx context.Context, id uuid.UUID, shareID string) error {
	args := m.Called(ctx, id, shareID)
	return args.Error(0)
}

func (m *MockFileRepo) SetIcon(ctx context.Context, id uuid.UUID, icon string) error {
	args := m.Called(ctx, id, icon)
	return args.Error(0)
}

func (m *MockFileRepo) List(ctx context.Context, filter repo.ListFilter, field repo.SortField, order repo.SortOrder, limit int) ([]*model.FileRecord, error) {
	args := m.Called(ctx, filter, field, order, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.FileRecord), args.Error(1)
}

func (m *MockFileRepo) ListOldest(ctx context.Context, limit int) ([]*model.FileRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.FileRecord), args.Error(1)
}

func (m *MockFileRepo) CountAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFileRepo) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFileRepo) DistinctProjects(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockFileRepo) GroupByProject(ctx context.Context) ([]repo.GroupRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repo.GroupRow), args.Error(1)
}

func (m *MockFileRepo) GroupByVersion(ctx context.Context, project string) ([]repo.GroupRow, error) {
	args := m.Called(ctx, project)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repo.GroupRow), args.Error(1)
}

func (m *MockFileRepo) GroupByChannel(ctx context.Context, project, version string) ([]repo.GroupRow, error) {
	args := m.Called(ctx, project, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repo.GroupRow), args.Error(1)
}
