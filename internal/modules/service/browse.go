package service

import (
	"context"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/zhaocg/app-download-center/internal/modules/model"
	"github.com/zhaocg/app-download-center/internal/modules/repo"
)

// BrowseLevel is the hierarchy depth a browse query resolves to, determined
// by which prefix fields are present.
type BrowseLevel string

const (
	LevelProject BrowseLevel = "project"
	LevelVersion BrowseLevel = "version"
	LevelChannel BrowseLevel = "channel"
	LevelFile    BrowseLevel = "file"
)

type BrowseQuery struct {
	Project string
	Version string
	Channel string
	Field   repo.SortField
	Order   repo.SortOrder
}

// BrowseEntry is either a group bucket (project/version/channel level) or a
// leaf file.
type BrowseEntry struct {
	Type             BrowseLevel       `json:"type"`
	Name             string            `json:"name,omitempty"`
	LatestUploadedAt *time.Time        `json:"latestUploadedAt,omitempty"`
	FileCount        int64             `json:"fileCount,omitempty"`
	File             *model.FileRecord `json:"file,omitempty"`
}

type BrowseResult struct {
	Level   BrowseLevel   `json:"level"`
	Project string        `json:"project,omitempty"`
	Version string        `json:"version,omitempty"`
	Channel string        `json:"channel,omitempty"`
	Entries []BrowseEntry `json:"entries"`
}

type BrowseService interface {
	Browse(ctx context.Context, q BrowseQuery) (*BrowseResult, error)
}

type browseService struct {
	r repo.FileRepo
}

func NewBrowseService(r repo.FileRepo) BrowseService {
	return &browseService{r: r}
}

// Browse projects the index into the four-level hierarchy. Group levels
// aggregate per distinct key; the leaf level returns raw records in the
// index's query order.
func (s *browseService) Browse(ctx context.Context, q BrowseQuery) (*BrowseResult, error) {
	level := resolveLevel(q)
	result := &BrowseResult{
		Level:   level,
		Project: q.Project,
		Version: q.Version,
		Channel: q.Channel,
	}

	if level == LevelFile {
		recs, err := s.r.List(ctx, repo.ListFilter{
			ProjectName: q.Project,
			Version:     q.Version,
			Channel:     q.Channel,
		}, q.Field, q.Order, 0)
		if err != nil {
			return nil, err
		}
		result.Entries = make([]BrowseEntry, 0, len(recs))
		for _, rec := range recs {
			result.Entries = append(result.Entries, BrowseEntry{Type: LevelFile, File: rec})
		}
		return result, nil
	}

	var rows []repo.GroupRow
	var err error
	switch level {
	case LevelProject:
		rows, err = s.r.GroupByProject(ctx)
	case LevelVersion:
		rows, err = s.r.GroupByVersion(ctx, q.Project)
	case LevelChannel:
		rows, err = s.r.GroupByChannel(ctx, q.Project, q.Version)
	}
	if err != nil {
		return nil, err
	}

	entries := make([]BrowseEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, BrowseEntry{
			Type:             level,
			Name:             row.Name,
			LatestUploadedAt: row.LatestUploadedAt,
			FileCount:        row.FileCount,
		})
	}
	sortGroups(entries, q.Field, q.Order)
	result.Entries = entries
	return result, nil
}

func resolveLevel(q BrowseQuery) BrowseLevel {
	switch {
	case q.Project == "":
		return LevelProject
	case q.Version == "":
		return LevelVersion
	case q.Channel == "":
		return LevelChannel
	default:
		return LevelFile
	}
}

// sortGroups orders group buckets by name with zh-CN collation or by latest
// upload time numerically. Equal keys keep their query order.
func sortGroups(entries []BrowseEntry, field repo.SortField, order repo.SortOrder) {
	asc := order == repo.OrderAsc

	if field == repo.SortByName {
		c := collate.New(language.Chinese)
		sort.SliceStable(entries, func(i, j int) bool {
			cmp := c.CompareString(entries[i].Name, entries[j].Name)
			if asc {
				return cmp < 0
			}
			return cmp > 0
		})
		return
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].LatestUploadedAt, entries[j].LatestUploadedAt
		if a == nil || b == nil {
			return false
		}
		if asc {
			return a.Before(*b)
		}
		return b.Before(*a)
	})
}
