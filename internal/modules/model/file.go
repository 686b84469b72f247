package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/zhaocg/app-download-center/internal/pkg/utils/pathutil"
)

// FileRecord is the metadata record of one uploaded artifact. RelativePath
// is the join key to the bytes on disk and is unique per record: a re-upload
// deriving the same path updates the existing record instead of inserting a
// duplicate.
type FileRecord struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`

	ProjectName string `gorm:"size:255;not null;index" json:"projectName"`
	Version     string `gorm:"size:128;not null;index" json:"version"`
	Channel     string `gorm:"size:128;not null" json:"channel"`
	BuildNumber string `gorm:"size:64;not null" json:"buildNumber"`

	FileName     string            `gorm:"size:512;not null" json:"fileName"`
	RelativePath string            `gorm:"size:1024;not null;uniqueIndex" json:"relativePath"`
	Platform     pathutil.Platform `gorm:"size:16;not null" json:"platform"`
	Size         int64             `gorm:"not null" json:"size"`
	UploadedAt   time.Time         `gorm:"not null;index" json:"uploadedAt"`

	ResVersion   string `gorm:"size:128" json:"resVersion,omitempty"`
	AreaName     string `gorm:"size:128" json:"areaName,omitempty"`
	Branch       string `gorm:"size:128" json:"branch,omitempty"`
	Rbranch      string `gorm:"size:128" json:"rbranch,omitempty"`
	SDK          string `gorm:"size:128" json:"sdk,omitempty"`
	Harden       bool   `gorm:"default:false" json:"harden"`
	CodeSignType string `gorm:"size:64" json:"codeSignType,omitempty"`
	AppID        string `gorm:"size:255" json:"appId,omitempty"`

	// ShareID is lazily assigned on the first share request and stable
	// thereafter.
	ShareID string `gorm:"size:64;index" json:"shareId,omitempty"`

	// Icon is a cached base64 payload from the external icon extractor.
	// Not authoritative; recomputed on demand.
	Icon string `gorm:"type:text" json:"-"`
}

func (FileRecord) TableName() string { return "files" }
