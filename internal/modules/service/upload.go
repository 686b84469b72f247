package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zhaocg/app-download-center/internal/infra/notify"
	"github.com/zhaocg/app-download-center/internal/infra/storage"
	"github.com/zhaocg/app-download-center/internal/modules/model"
	"github.com/zhaocg/app-download-center/internal/modules/repo"
	"github.com/zhaocg/app-download-center/internal/pkg/utils/pathutil"
)

// UploadInput is the fixed metadata bag of one upload, validated at this
// boundary rather than trusted downstream. TempPath points at the payload
// already parked on disk by the multipart layer.
type UploadInput struct {
	ProjectName string `validate:"required"`
	Version     string `validate:"required"`
	BuildNumber string `validate:"required"`
	Channel     string `validate:"required"`
	FileName    string `validate:"required"`
	TempPath    string `validate:"required"`
	Size        int64

	ResVersion   string
	AreaName     string
	Branch       string
	Rbranch      string
	SDK          string
	Harden       bool
	CodeSignType string
	AppID        string
}

type UploadService interface {
	Upload(ctx context.Context, in UploadInput) (*model.FileRecord, error)
}

type uploadService struct {
	r         repo.FileRepo
	store     *storage.LocalStore
	dispatch  *notify.Dispatcher
	validate  *validator.Validate
	baseURL   string
	canonical bool
}

func NewUploadService(r repo.FileRepo, store *storage.LocalStore, dispatch *notify.Dispatcher, baseURL string, canonicalNaming bool) UploadService {
	return &uploadService{
		r:         r,
		store:     store,
		dispatch:  dispatch,
		validate:  validator.New(),
		baseURL:   baseURL,
		canonical: canonicalNaming,
	}
}

// Upload accepts one payload plus metadata and produces one committed
// record. Bytes land first, metadata second: a crash in between leaves an
// orphan file, never a record pointing nowhere.
func (s *uploadService) Upload(ctx context.Context, in UploadInput) (*model.FileRecord, error) {
	if err := s.validate.Struct(in); err != nil {
		discard(in.TempPath)
		return nil, fmt.Errorf("%w: %v", ErrMissingField, err)
	}

	fileName := in.FileName
	if s.canonical {
		fileName = pathutil.CanonicalFileName(in.ProjectName, in.Version, in.BuildNumber, in.Channel, in.FileName, pathutil.NameTags{
			ResVersion:   in.ResVersion,
			AreaName:     in.AreaName,
			Branch:       in.Branch,
			Rbranch:      in.Rbranch,
			SDK:          in.SDK,
			Harden:       in.Harden,
			CodeSignType: in.CodeSignType,
			AppID:        in.AppID,
		})
	}

	relativePath, platform, err := pathutil.Derive(in.ProjectName, in.Version, in.Channel, fileName)
	if err != nil {
		discard(in.TempPath)
		return nil, err
	}

	size, err := s.store.Place(in.TempPath, relativePath)
	if err != nil {
		// Place already discarded the temp source; no record is committed.
		return nil, err
	}

	// A declared size that disagrees with what actually landed means the
	// payload was truncated in transit. Back the bytes out before failing so
	// no record ever points at a partial file.
	if in.Size > 0 && size != in.Size {
		s.store.Remove(relativePath)
		if dir, derr := s.store.DirOf(relativePath); derr == nil {
			s.store.PruneEmptyParents(dir)
		}
		return nil, fmt.Errorf("%w: declared %d bytes, stored %d", ErrSizeMismatch, in.Size, size)
	}

	rec, replaced, err := s.upsert(ctx, in, fileName, relativePath, platform, size)
	if err != nil {
		return nil, err
	}

	s.dispatch.Dispatch(notify.Event{
		Record:      rec,
		DownloadURL: fmt.Sprintf("%s/api/download?id=%s", s.baseURL, rec.ID),
		CenterURL:   s.baseURL,
		Replaced:    replaced,
	})

	return rec, nil
}

// upsert commits the metadata record keyed by relativePath: a re-upload of
// the same logical artifact overwrites the existing record in place.
func (s *uploadService) upsert(ctx context.Context, in UploadInput, fileName, relativePath string, platform pathutil.Platform, size int64) (*model.FileRecord, bool, error) {
	now := time.Now().UTC()

	existing, err := s.r.GetByRelativePath(ctx, relativePath)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("look up existing record: %w", err)
	}

	if existing != nil {
		existing.ProjectName = in.ProjectName
		existing.Version = in.Version
		existing.Channel = in.Channel
		existing.BuildNumber = in.BuildNumber
		existing.FileName = fileName
		existing.Platform = platform
		existing.Size = size
		existing.UploadedAt = now
		existing.ResVersion = in.ResVersion
		existing.AreaName = in.AreaName
		existing.Branch = in.Branch
		existing.Rbranch = in.Rbranch
		existing.SDK = in.SDK
		existing.Harden = in.Harden
		existing.CodeSignType = in.CodeSignType
		existing.AppID = in.AppID
		// The payload changed, so the cached icon is stale.
		existing.Icon = ""

		if err := s.r.Update(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("update record: %w", err)
		}
		return existing, true, nil
	}

	rec := &model.FileRecord{
		ID:           uuid.New(),
		ProjectName:  in.ProjectName,
		Version:      in.Version,
		Channel:      in.Channel,
		BuildNumber:  in.BuildNumber,
		FileName:     fileName,
		RelativePath: relativePath,
		Platform:     platform,
		Size:         size,
		UploadedAt:   now,
		ResVersion:   in.ResVersion,
		AreaName:     in.AreaName,
		Branch:       in.Branch,
		Rbranch:      in.Rbranch,
		SDK:          in.SDK,
		Harden:       in.Harden,
		CodeSignType: in.CodeSignType,
		AppID:        in.AppID,
	}
	if err := s.r.Create(ctx, rec); err != nil {
		return nil, false, fmt.Errorf("create record: %w", err)
	}
	return rec, false, nil
}

func discard(tempPath string) {
	if tempPath != "" {
		_ = os.Remove(tempPath)
	}
}
