package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zhaocg/app-download-center/internal/modules/model"
)

// SortField selects the column file listings are ordered by.
type SortField string

// SortOrder is the listing direction.
type SortOrder string

const (
	SortByName       SortField = "name"
	SortBySize       SortField = "size"
	SortByUploadedAt SortField = "uploadedAt"

	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ListFilter is the equality/range filter shape of the metadata index.
// Zero-valued fields do not constrain the query.
type ListFilter struct {
	ProjectName string
	Version     string
	Channel     string
	// Before restricts to records uploaded strictly before the cutoff.
	Before *time.Time
}

// GroupRow is one aggregate bucket of a hierarchy level: the distinct key
// value, how many records carry it and the most recent upload among them.
type GroupRow struct {
	Name             string     `gorm:"column:name"`
	FileCount        int64      `gorm:"column:file_count"`
	LatestUploadedAt *time.Time `gorm:"column:latest_uploaded_at"`
}

type FileRepo interface {
	Create(ctx context.Context, rec *model.FileRecord) error
	Update(ctx context.Context, rec *model.FileRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.FileRecord, error)
	GetByRelativePath(ctx context.Context, relativePath string) (*model.FileRecord, error)
	GetByShareID(ctx context.Context, shareID string) (*model.FileRecord, error)
	SetShareID(ctx context.Context, id uuid.UUID, shareID string) error
	SetIcon(ctx context.Context, id uuid.UUID, icon string) error
	List(ctx context.Context, filter ListFilter, field SortField, order SortOrder, limit int) ([]*model.FileRecord, error)
	ListOldest(ctx context.Context, limit int) ([]*model.FileRecord, error)
	CountAll(ctx context.Context) (int64, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
	DistinctProjects(ctx context.Context) ([]string, error)
	GroupByProject(ctx context.Context) ([]GroupRow, error)
	GroupByVersion(ctx context.Context, project string) ([]GroupRow, error)
	GroupByChannel(ctx context.Context, project, version string) ([]GroupRow, error)
}

type fileRepo struct{ db *gorm.DB }

func NewFileRepo(db *gorm.DB) FileRepo {
	return &fileRepo{db: db}
}

func (r *fileRepo) Create(ctx context.Context, rec *model.FileRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *fileRepo) Update(ctx context.Context, rec *model.FileRecord) error {
	// Save writes every column so a re-upload can clear optional tags.
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *fileRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.FileRecord, error) {
	var rec model.FileRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *fileRepo) GetByRelativePath(ctx context.Context, relativePath string) (*model.FileRecord, error) {
	var rec model.FileRecord
	if err := r.db.WithContext(ctx).Where("relative_path = ?", relativePath).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *fileRepo) GetByShareID(ctx context.Context, shareID string) (*model.FileRecord, error) {
	var rec model.FileRecord
	if err := r.db.WithContext(ctx).Where("share_id = ?", shareID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *fileRepo) SetShareID(ctx context.Context, id uuid.UUID, shareID string) error {
	return r.db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("id = ?", id).Update("share_id", shareID).Error
}

func (r *fileRepo) SetIcon(ctx context.Context, id uuid.UUID, icon string) error {
	return r.db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("id = ?", id).Update("icon", icon).Error
}

func (r *fileRepo) applyFilter(ctx context.Context, filter ListFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&model.FileRecord{})
	if filter.ProjectName != "" {
		query = query.Where("project_name = ?", filter.ProjectName)
	}
	if filter.Version != "" {
		query = query.Where("version = ?", filter.Version)
	}
	if filter.Channel != "" {
		query = query.Where("channel = ?", filter.Channel)
	}
	if filter.Before != nil {
		query = query.Where("uploaded_at < ?", *filter.Before)
	}
	return query
}

func orderClause(field SortField, order SortOrder) string {
	col := "uploaded_at"
	switch field {
	case SortByName:
		col = "file_name"
	case SortBySize:
		col = "size"
	case SortByUploadedAt:
		col = "uploaded_at"
	}
	dir := "DESC"
	if order == OrderAsc {
		dir = "ASC"
	}
	return col + " " + dir
}

func (r *fileRepo) List(ctx context.Context, filter ListFilter, field SortField, order SortOrder, limit int) ([]*model.FileRecord, error) {
	var recs []*model.FileRecord
	query := r.applyFilter(ctx, filter).Order(orderClause(field, order))
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *fileRepo) ListOldest(ctx context.Context, limit int) ([]*model.FileRecord, error) {
	var recs []*model.FileRecord
	query := r.db.WithContext(ctx).Order("uploaded_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *fileRepo) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.FileRecord{}).Count(&count).Error
	return count, err
}

func (r *fileRepo) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.FileRecord{})
	return res.RowsAffected, res.Error
}

func (r *fileRepo) DistinctProjects(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&model.FileRecord{}).
		Distinct("project_name").
		Pluck("project_name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (r *fileRepo) groupBy(ctx context.Context, keyColumn string, filter ListFilter) ([]GroupRow, error) {
	var rows []GroupRow
	err := r.applyFilter(ctx, filter).
		Select(keyColumn + " AS name, COUNT(*) AS file_count, MAX(uploaded_at) AS latest_uploaded_at").
		Group(keyColumn).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *fileRepo) GroupByProject(ctx context.Context) ([]GroupRow, error) {
	return r.groupBy(ctx, "project_name", ListFilter{})
}

func (r *fileRepo) GroupByVersion(ctx context.Context, project string) ([]GroupRow, error) {
	return r.groupBy(ctx, "version", ListFilter{ProjectName: project})
}

func (r *fileRepo) GroupByChannel(ctx context.Context, project, version string) ([]GroupRow, error) {
	return r.groupBy(ctx, "channel", ListFilter{ProjectName: project, Version: version})
}
