package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zhaocg/app-download-center/internal/modules/model"
	"github.com/zhaocg/app-download-center/internal/modules/service"
)

// MockFileService is a mock implementation of service.FileService
type MockFileService struct {
	mock.Mock
}

func (m *MockFileService) GetByID(ctx context.Context, id uuid.UUID) (*model.FileRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FileRecord), args.Error(1)
}

func (m *MockFileService) OpenDownload(ctx context.Context, id uuid.UUID) (*service.Download, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Download), args.Error(1)
}

func (m *MockFileService) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockFileService) Share(ctx context.Context, id uuid.UUID) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockFileService) GetByShareID(ctx context.Context, shareID string) (*model.FileRecord, error) {
	args := m.Called(ctx, shareID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FileRecord), args.Error(1)
}

func (m *MockFileService) RecentUploads(ctx context.Context, project string, limit int) ([]*model.FileRecord, error) {
	args := m.Called(ctx, project, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.FileRecord), args.Error(1)
}

func (m *MockFileService) Projects(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockFileService) Icon(ctx context.Context, id uuid.UUID) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockFileService) Manifest(ctx context.Context, id uuid.UUID, origin string) (string, error) {
	args := m.Called(ctx, id, origin)
	return args.String(0), args.Error(1)
}

func openTestPayload(t *testing.T, content string) *os.File {
	t.Helper()
	p := filepath.Join(t.TempDir(), "demo.apk")
	assert.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	f, err := os.Open(p)
	assert.NoError(t, err)
	return f
}

func TestFileHandler_Download(t *testing.T) {
	id := uuid.New()
	f := openTestPayload(t, "apk bytes")

	mockService := &MockFileService{}
	mockService.On("OpenDownload", mock.Anything, id).Return(&service.Download{
		File:        f,
		Size:        int64(len("apk bytes")),
		FileName:    "demo.apk",
		ContentType: "application/vnd.android.package-archive",
	}, nil)

	h := NewFileHandler(mockService, "http://localhost:8080")
	router := setupRouter()
	router.GET("/api/download", h.Download)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/download?id="+id.String(), nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "apk bytes", w.Body.String())
	assert.Equal(t, "application/vnd.android.package-archive", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "demo.apk")
	mockService.AssertExpectations(t)
}

func TestFileHandler_DownloadNotFound(t *testing.T) {
	id := uuid.New()

	mockService := &MockFileService{}
	mockService.On("OpenDownload", mock.Anything, id).Return(nil, service.ErrNotFound)

	h := NewFileHandler(mockService, "http://localhost:8080")
	router := setupRouter()
	router.GET("/api/download", h.Download)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/download?id="+id.String(), nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFileHandler_DownloadBadID(t *testing.T) {
	h := NewFileHandler(&MockFileService{}, "http://localhost:8080")
	router := setupRouter()
	router.GET("/api/download", h.Download)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/download?id=not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFileHandler_Share(t *testing.T) {
	id := uuid.New()

	mockService := &MockFileService{}
	mockService.On("Share", mock.Anything, id).Return("share-token", nil)

	h := NewFileHandler(mockService, "http://dl.example.com")
	router := setupRouter()
	router.POST("/api/share", h.Share)

	body, _ := sonic.Marshal(map[string]string{"id": id.String()})
	req := httptest.NewRequest("POST", "/api/share", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data ShareResp `json:"data"`
	}
	assert.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "share-token", resp.Data.ShareID)
	assert.Equal(t, "http://dl.example.com/share/share-token", resp.Data.URL)
	mockService.AssertExpectations(t)
}

func TestFileHandler_ResolveShare(t *testing.T) {
	record := createTestRecord()
	record.ShareID = "share-token"

	mockService := &MockFileService{}
	mockService.On("GetByShareID", mock.Anything, "share-token").Return(record, nil)
	mockService.On("GetByShareID", mock.Anything, "unknown").Return(nil, service.ErrNotFound)

	h := NewFileHandler(mockService, "http://localhost:8080")
	router := setupRouter()
	router.GET("/share/:shareId", h.ResolveShare)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/share/share-token", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/share/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFileHandler_Icon(t *testing.T) {
	id := uuid.New()
	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	icon := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	mockService := &MockFileService{}
	mockService.On("Icon", mock.Anything, id).Return(icon, nil)

	h := NewFileHandler(mockService, "http://localhost:8080")
	router := setupRouter()
	router.GET("/api/icon", h.Icon)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/icon?id="+id.String(), nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, raw, w.Body.Bytes())
	assert.NotEmpty(t, w.Header().Get("Cache-Control"))
}

func TestFileHandler_IconMissing(t *testing.T) {
	id := uuid.New()

	mockService := &MockFileService{}
	mockService.On("Icon", mock.Anything, id).Return("", service.ErrNoIcon)

	h := NewFileHandler(mockService, "http://localhost:8080")
	router := setupRouter()
	router.GET("/api/icon", h.Icon)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/icon?id="+id.String(), nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFileHandler_Manifest(t *testing.T) {
	id := uuid.New()

	mockService := &MockFileService{}
	mockService.On("Manifest", mock.Anything, id, "http://localhost:8080").
		Return("<plist></plist>", nil)

	h := NewFileHandler(mockService, "http://localhost:8080")
	router := setupRouter()
	router.GET("/api/ios/manifest", h.Manifest)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/ios/manifest?id="+id.String(), nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")
	assert.Equal(t, "<plist></plist>", w.Body.String())
}

func TestFileHandler_ManifestUnavailable(t *testing.T) {
	id := uuid.New()

	mockService := &MockFileService{}
	mockService.On("Manifest", mock.Anything, id, mock.Anything).
		Return("", service.ErrManifestUnavailable)

	h := NewFileHandler(mockService, "http://localhost:8080")
	router := setupRouter()
	router.GET("/api/ios/manifest", h.Manifest)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/ios/manifest?id="+id.String(), nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFileHandler_Delete(t *testing.T) {
	id := uuid.New()

	mockService := &MockFileService{}
	mockService.On("Delete", mock.Anything, id).Return(nil)

	h := NewFileHandler(mockService, "http://localhost:8080")
	router := setupRouter()
	router.DELETE("/api/file", h.Delete)

	body, _ := sonic.Marshal(map[string]string{"id": id.String()})
	req := httptest.NewRequest("DELETE", "/api/file", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}
