package notify

import (
	"context"

	mq "github.com/zhaocg/app-download-center/internal/infra/queue"
)

const routingKeyUploaded = "artifact.uploaded"

// QueueNotifier publishes upload events to the message exchange for
// downstream release tooling.
type QueueNotifier struct {
	pub *mq.Publisher
}

func NewQueueNotifier(pub *mq.Publisher) *QueueNotifier {
	return &QueueNotifier{pub: pub}
}

type uploadEvent struct {
	ID           string `json:"id"`
	ProjectName  string `json:"projectName"`
	Version      string `json:"version"`
	Channel      string `json:"channel"`
	BuildNumber  string `json:"buildNumber"`
	Platform     string `json:"platform"`
	RelativePath string `json:"relativePath"`
	Size         int64  `json:"size"`
	UploadedAt   string `json:"uploadedAt"`
	Replaced     bool   `json:"replaced"`
	DownloadURL  string `json:"downloadUrl"`
}

func (n *QueueNotifier) Notify(ctx context.Context, ev Event) error {
	rec := ev.Record
	return n.pub.PublishJSON(ctx, routingKeyUploaded, uploadEvent{
		ID:           rec.ID.String(),
		ProjectName:  rec.ProjectName,
		Version:      rec.Version,
		Channel:      rec.Channel,
		BuildNumber:  rec.BuildNumber,
		Platform:     string(rec.Platform),
		RelativePath: rec.RelativePath,
		Size:         rec.Size,
		UploadedAt:   rec.UploadedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Replaced:     ev.Replaced,
		DownloadURL:  ev.DownloadURL,
	})
}
