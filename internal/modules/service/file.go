package service

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/zhaocg/app-download-center/internal/infra/storage"
	"github.com/zhaocg/app-download-center/internal/modules/model"
	"github.com/zhaocg/app-download-center/internal/modules/repo"
	"github.com/zhaocg/app-download-center/internal/pkg/utils/pathutil"
)

// IconExtractor is the boundary to the external binary-parsing tool that
// pulls an app icon out of an APK/IPA. Implementations return a base64
// data URL.
type IconExtractor interface {
	Extract(ctx context.Context, absPath string) (string, error)
}

// NoopExtractor is the default when no extractor binary is wired in.
type NoopExtractor struct{}

func (NoopExtractor) Extract(context.Context, string) (string, error) {
	return "", ErrNoIcon
}

// Download is an open handle onto an artifact's bytes. The caller owns
// closing File.
type Download struct {
	File        *os.File
	Size        int64
	FileName    string
	ContentType string
}

type FileService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.FileRecord, error)
	OpenDownload(ctx context.Context, id uuid.UUID) (*Download, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Share(ctx context.Context, id uuid.UUID) (string, error)
	GetByShareID(ctx context.Context, shareID string) (*model.FileRecord, error)
	RecentUploads(ctx context.Context, project string, limit int) ([]*model.FileRecord, error)
	Projects(ctx context.Context) ([]string, error)
	Icon(ctx context.Context, id uuid.UUID) (string, error)
	Manifest(ctx context.Context, id uuid.UUID, origin string) (string, error)
}

type fileService struct {
	r         repo.FileRepo
	store     *storage.LocalStore
	extractor IconExtractor
}

func NewFileService(r repo.FileRepo, store *storage.LocalStore, extractor IconExtractor) FileService {
	if extractor == nil {
		extractor = NoopExtractor{}
	}
	return &fileService{r: r, store: store, extractor: extractor}
}

func (s *fileService) GetByID(ctx context.Context, id uuid.UUID) (*model.FileRecord, error) {
	rec, err := s.r.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// OpenDownload resolves a record and opens its backing file. A record whose
// file vanished (for example a delete racing this download) yields
// ErrNotFound, never a server error.
func (s *fileService) OpenDownload(ctx context.Context, id uuid.UUID) (*Download, error) {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	f, size, err := s.store.Open(rec.RelativePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &Download{
		File:        f,
		Size:        size,
		FileName:    rec.FileName,
		ContentType: contentTypeFor(rec.FileName, f.Name()),
	}, nil
}

func contentTypeFor(fileName, absPath string) string {
	lower := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".apk"):
		return "application/vnd.android.package-archive"
	case strings.HasSuffix(lower, ".ipa"):
		return "application/octet-stream"
	}
	if mt, err := mimetype.DetectFile(absPath); err == nil {
		return mt.String()
	}
	return "application/octet-stream"
}

// Delete removes one artifact: the backing file and its newly emptied
// parent directories best-effort, then the record. A missing file does not
// block the record delete.
func (s *fileService) Delete(ctx context.Context, id uuid.UUID) error {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	s.store.Remove(rec.RelativePath)
	if dir, err := s.store.DirOf(rec.RelativePath); err == nil {
		s.store.PruneEmptyParents(dir)
	}

	if _, err := s.r.DeleteByIDs(ctx, []uuid.UUID{rec.ID}); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Share returns the record's share token, assigning one on first request.
// The token is stable across repeated calls.
func (s *fileService) Share(ctx context.Context, id uuid.UUID) (string, error) {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if rec.ShareID != "" {
		return rec.ShareID, nil
	}

	shareID := uuid.NewString()
	if err := s.r.SetShareID(ctx, rec.ID, shareID); err != nil {
		return "", fmt.Errorf("assign share id: %w", err)
	}
	return shareID, nil
}

func (s *fileService) GetByShareID(ctx context.Context, shareID string) (*model.FileRecord, error) {
	rec, err := s.r.GetByShareID(ctx, shareID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *fileService) RecentUploads(ctx context.Context, project string, limit int) ([]*model.FileRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return s.r.List(ctx, repo.ListFilter{ProjectName: project}, repo.SortByUploadedAt, repo.OrderDesc, limit)
}

func (s *fileService) Projects(ctx context.Context) ([]string, error) {
	names, err := s.r.DistinctProjects(ctx)
	if err != nil {
		return nil, err
	}
	filtered := names[:0]
	for _, n := range names {
		if n != "" {
			filtered = append(filtered, n)
		}
	}
	c := collate.New(language.Chinese)
	sort.SliceStable(filtered, func(i, j int) bool {
		return c.CompareString(filtered[i], filtered[j]) < 0
	})
	return filtered, nil
}

// Icon serves the cached icon when present, otherwise asks the external
// extractor and caches what it returns. The cache is not authoritative and
// is dropped whenever the payload is replaced.
func (s *fileService) Icon(ctx context.Context, id uuid.UUID) (string, error) {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if rec.Icon != "" {
		return rec.Icon, nil
	}

	abs, err := s.store.Abs(rec.RelativePath)
	if err != nil {
		return "", ErrNoIcon
	}
	icon, err := s.extractor.Extract(ctx, abs)
	if err != nil || icon == "" {
		return "", ErrNoIcon
	}

	// Best-effort cache; serving the icon matters more than caching it.
	_ = s.r.SetIcon(ctx, rec.ID, icon)
	return icon, nil
}

const manifestTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
  <key>items</key>
  <array>
    <dict>
      <key>assets</key>
      <array>
        <dict>
          <key>kind</key>
          <string>software-package</string>
          <key>url</key>
          <string>%s</string>
        </dict>
      </array>
      <key>metadata</key>
      <dict>
        <key>bundle-identifier</key>
        <string>%s</string>
        <key>bundle-version</key>
        <string>%s</string>
        <key>kind</key>
        <string>software</string>
        <key>title</key>
        <string>%s</string>
      </dict>
    </dict>
  </array>
</dict>
</plist>`

// Manifest renders the OTA install plist for an iOS record with an appId.
func (s *fileService) Manifest(ctx context.Context, id uuid.UUID, origin string) (string, error) {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if rec.Platform != pathutil.PlatformIOS || rec.AppID == "" {
		return "", ErrManifestUnavailable
	}

	ipaURL := fmt.Sprintf("%s/api/download?id=%s", origin, rec.ID)
	return fmt.Sprintf(manifestTemplate,
		xmlEscape(ipaURL),
		xmlEscape(rec.AppID),
		xmlEscape(rec.Version),
		xmlEscape(rec.ProjectName),
	), nil
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
