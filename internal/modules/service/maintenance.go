package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhaocg/app-download-center/internal/infra/storage"
	"github.com/zhaocg/app-download-center/internal/modules/model"
	"github.com/zhaocg/app-download-center/internal/modules/repo"
)

const (
	defaultCleanupLimit = 200
	maxCleanupLimit     = 1000
	clearSampleSize     = 20
)

// ClearMode selects what a clear request erases.
type ClearMode string

const (
	ClearByTime           ClearMode = "time"
	ClearByProject        ClearMode = "project"
	ClearByProjectVersion ClearMode = "projectVersion"
	ClearEmptyDirs        ClearMode = "emptyDirs"
)

type ClearRequest struct {
	Mode        ClearMode
	Before      *time.Time
	ProjectName string
	Version     string
	DryRun      bool
}

type ClearSampleItem struct {
	ID          string    `json:"id"`
	ProjectName string    `json:"projectName"`
	Version     string    `json:"version"`
	Channel     string    `json:"channel"`
	FileName    string    `json:"fileName"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type ClearResult struct {
	Matched   int               `json:"matched"`
	Deleted   int               `json:"deleted"`
	TotalSize int64             `json:"totalSize"`
	Sample    []ClearSampleItem `json:"sample"`
	Dirs      []string          `json:"dirs,omitempty"`
}

type CleanupResult struct {
	Checked int  `json:"checked"`
	Removed int  `json:"removed"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}

type MaintenanceService interface {
	// Cleanup scans up to limit records oldest-first and removes those
	// whose backing file is missing or invalid.
	Cleanup(ctx context.Context, limit int) (*CleanupResult, error)
	// Clear erases a filter-selected set of records and their backing
	// files, or reconciles empty directories and orphan records.
	Clear(ctx context.Context, req ClearRequest) (*ClearResult, error)
}

type maintenanceService struct {
	r     repo.FileRepo
	store *storage.LocalStore
	log   *zap.Logger
}

func NewMaintenanceService(r repo.FileRepo, store *storage.LocalStore, log *zap.Logger) MaintenanceService {
	return &maintenanceService{r: r, store: store, log: log}
}

// ClampCleanupLimit applies the default and the hard cap of the cleanup
// batch bound.
func ClampCleanupLimit(limit int) int {
	if limit <= 0 {
		return defaultCleanupLimit
	}
	if limit > maxCleanupLimit {
		return maxCleanupLimit
	}
	return limit
}

func (s *maintenanceService) Cleanup(ctx context.Context, limit int) (*CleanupResult, error) {
	limit = ClampCleanupLimit(limit)

	recs, err := s.r.ListOldest(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}

	var orphanIDs []uuid.UUID
	for _, rec := range recs {
		if s.isOrphan(rec) {
			orphanIDs = append(orphanIDs, rec.ID)
		}
	}

	removed := int64(0)
	if len(orphanIDs) > 0 {
		removed, err = s.r.DeleteByIDs(ctx, orphanIDs)
		if err != nil {
			return nil, fmt.Errorf("delete orphan records: %w", err)
		}
	}

	total, err := s.r.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	return &CleanupResult{
		Checked: len(recs),
		Removed: int(removed),
		Limit:   limit,
		HasMore: len(recs) == limit || total > int64(len(recs)),
	}, nil
}

// isOrphan reports whether a record's backing file is missing or invalid.
// An empty relativePath can never resolve, so it is always orphaned.
func (s *maintenanceService) isOrphan(rec *model.FileRecord) bool {
	if rec.RelativePath == "" {
		return true
	}
	return !s.store.Verify(rec.RelativePath).Valid()
}

func (s *maintenanceService) Clear(ctx context.Context, req ClearRequest) (*ClearResult, error) {
	if req.Mode == ClearEmptyDirs {
		return s.clearEmptyDirs(ctx, req.DryRun)
	}

	filter, err := clearFilter(req)
	if err != nil {
		return nil, err
	}

	recs, err := s.r.List(ctx, filter, repo.SortByUploadedAt, repo.OrderAsc, 0)
	if err != nil {
		return nil, fmt.Errorf("query matching records: %w", err)
	}

	result := &ClearResult{
		Matched: len(recs),
		Sample:  sampleOf(recs),
	}
	for _, rec := range recs {
		result.TotalSize += rec.Size
	}
	if req.DryRun || len(recs) == 0 {
		return result, nil
	}

	// Per-record storage deletes are best-effort: one bad file must not
	// abort the batch.
	ids := make([]uuid.UUID, 0, len(recs))
	for _, rec := range recs {
		s.store.Remove(rec.RelativePath)
		if dir, err := s.store.DirOf(rec.RelativePath); err == nil {
			s.store.PruneEmptyParents(dir)
		}
		ids = append(ids, rec.ID)
	}

	deleted, err := s.r.DeleteByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("delete records: %w", err)
	}
	// deleted may lag matched when an id vanished between query and
	// delete; that is benign.
	result.Deleted = int(deleted)
	return result, nil
}

// clearEmptyDirs is the reconciliation mode: it computes the orphan-record
// and empty-directory divergence sets and, outside dry-run, commits both —
// records in one batch, directories deepest-first.
func (s *maintenanceService) clearEmptyDirs(ctx context.Context, dryRun bool) (*ClearResult, error) {
	dirs, err := s.store.FindEmptyDirs()
	if err != nil {
		return nil, fmt.Errorf("scan empty directories: %w", err)
	}

	invalid, err := s.findOrphanRecords(ctx)
	if err != nil {
		return nil, err
	}

	result := &ClearResult{
		Matched: len(dirs) + len(invalid),
		Sample:  sampleOf(invalid),
		Dirs:    dirs,
	}
	if dryRun || result.Matched == 0 {
		return result, nil
	}

	removedRecords := int64(0)
	if len(invalid) > 0 {
		ids := make([]uuid.UUID, 0, len(invalid))
		for _, rec := range invalid {
			ids = append(ids, rec.ID)
		}
		removedRecords, err = s.r.DeleteByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("delete orphan records: %w", err)
		}
	}

	removedDirs := s.store.RemoveEmptyDirs(dirs)
	s.log.Info("reconciliation commit",
		zap.Int("orphanRecords", int(removedRecords)),
		zap.Int("emptyDirs", len(removedDirs)))

	result.Deleted = int(removedRecords) + len(removedDirs)
	result.Dirs = removedDirs
	return result, nil
}

func (s *maintenanceService) findOrphanRecords(ctx context.Context) ([]*model.FileRecord, error) {
	recs, err := s.r.ListOldest(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	var invalid []*model.FileRecord
	for _, rec := range recs {
		if s.isOrphan(rec) {
			invalid = append(invalid, rec)
		}
	}
	return invalid, nil
}

func clearFilter(req ClearRequest) (repo.ListFilter, error) {
	switch req.Mode {
	case ClearByTime:
		if req.Before == nil {
			return repo.ListFilter{}, fmt.Errorf("%w: time mode requires before", ErrInvalidFilter)
		}
		return repo.ListFilter{Before: req.Before}, nil
	case ClearByProject:
		if req.ProjectName == "" {
			return repo.ListFilter{}, fmt.Errorf("%w: project mode requires projectName", ErrInvalidFilter)
		}
		return repo.ListFilter{ProjectName: req.ProjectName, Before: req.Before}, nil
	case ClearByProjectVersion:
		if req.ProjectName == "" || req.Version == "" {
			return repo.ListFilter{}, fmt.Errorf("%w: projectVersion mode requires projectName and version", ErrInvalidFilter)
		}
		return repo.ListFilter{ProjectName: req.ProjectName, Version: req.Version, Before: req.Before}, nil
	default:
		return repo.ListFilter{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidFilter, req.Mode)
	}
}

func sampleOf(recs []*model.FileRecord) []ClearSampleItem {
	n := len(recs)
	if n > clearSampleSize {
		n = clearSampleSize
	}
	sample := make([]ClearSampleItem, 0, n)
	for _, rec := range recs[:n] {
		sample = append(sample, ClearSampleItem{
			ID:          rec.ID.String(),
			ProjectName: rec.ProjectName,
			Version:     rec.Version,
			Channel:     rec.Channel,
			FileName:    rec.FileName,
			UploadedAt:  rec.UploadedAt,
		})
	}
	return sample
}
