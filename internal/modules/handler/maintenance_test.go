package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zhaocg/app-download-center/internal/modules/service"
)

// MockMaintenanceService is a mock implementation of service.MaintenanceService
type MockMaintenanceService struct {
	mock.Mock
}

func (m *MockMaintenanceService) Cleanup(ctx context.Context, limit int) (*service.CleanupResult, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CleanupResult), args.Error(1)
}

func (m *MockMaintenanceService) Clear(ctx context.Context, req service.ClearRequest) (*service.ClearResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ClearResult), args.Error(1)
}

func postJSON(router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	body, _ := sonic.Marshal(payload)
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMaintenanceHandler_Cleanup(t *testing.T) {
	mockService := &MockMaintenanceService{}
	mockService.On("Cleanup", mock.Anything, 100).Return(&service.CleanupResult{
		Checked: 100,
		Removed: 3,
		Limit:   100,
		HasMore: true,
	}, nil)

	h := NewMaintenanceHandler(mockService)
	router := setupRouter()
	router.POST("/api/cleanup", h.Cleanup)

	w := postJSON(router, "/api/cleanup", map[string]int{"limit": 100})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data service.CleanupResult `json:"data"`
	}
	assert.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Data.Removed)
	assert.True(t, resp.Data.HasMore)
	mockService.AssertExpectations(t)
}

func TestMaintenanceHandler_CleanupEmptyBody(t *testing.T) {
	mockService := &MockMaintenanceService{}
	mockService.On("Cleanup", mock.Anything, 0).
		Return(&service.CleanupResult{Limit: 200}, nil)

	h := NewMaintenanceHandler(mockService)
	router := setupRouter()
	router.POST("/api/cleanup", h.Cleanup)

	req := httptest.NewRequest("POST", "/api/cleanup", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestMaintenanceHandler_Clear(t *testing.T) {
	mockService := &MockMaintenanceService{}
	mockService.On("Clear", mock.Anything, mock.MatchedBy(func(req service.ClearRequest) bool {
		return req.Mode == service.ClearByProject &&
			req.ProjectName == "demo" &&
			req.DryRun
	})).Return(&service.ClearResult{Matched: 5, TotalSize: 512}, nil)

	h := NewMaintenanceHandler(mockService)
	router := setupRouter()
	router.POST("/api/clear", h.Clear)

	w := postJSON(router, "/api/clear", map[string]any{
		"mode":        "project",
		"projectName": "demo",
		"dryRun":      true,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data service.ClearResult `json:"data"`
	}
	assert.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Data.Matched)
	assert.Equal(t, int64(512), resp.Data.TotalSize)
	mockService.AssertExpectations(t)
}

func TestMaintenanceHandler_ClearValidation(t *testing.T) {
	mockService := &MockMaintenanceService{}
	mockService.On("Clear", mock.Anything, mock.Anything).
		Return(nil, service.ErrInvalidFilter).Maybe()

	h := NewMaintenanceHandler(mockService)
	router := setupRouter()
	router.POST("/api/clear", h.Clear)

	t.Run("missing mode", func(t *testing.T) {
		w := postJSON(router, "/api/clear", map[string]any{"dryRun": true})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad before timestamp", func(t *testing.T) {
		w := postJSON(router, "/api/clear", map[string]any{
			"mode":   "time",
			"before": "yesterday",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("incomplete filter", func(t *testing.T) {
		w := postJSON(router, "/api/clear", map[string]any{"mode": "project"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMaintenanceHandler_ClearParsesBefore(t *testing.T) {
	mockService := &MockMaintenanceService{}
	mockService.On("Clear", mock.Anything, mock.MatchedBy(func(req service.ClearRequest) bool {
		return req.Mode == service.ClearByTime &&
			req.Before != nil &&
			req.Before.Year() == 2026
	})).Return(&service.ClearResult{}, nil)

	h := NewMaintenanceHandler(mockService)
	router := setupRouter()
	router.POST("/api/clear", h.Clear)

	w := postJSON(router, "/api/clear", map[string]any{
		"mode":   "time",
		"before": "2026-01-01T00:00:00Z",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}
