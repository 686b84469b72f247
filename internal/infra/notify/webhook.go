package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/zhaocg/app-download-center/internal/pkg/utils/pathutil"
)

// WebhookNotifier posts a DingTalk-style markdown card to a chat webhook
// for every committed upload.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type markdownPayload struct {
	MsgType  string `json:"msgtype"`
	Markdown struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"markdown"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, ev Event) error {
	rec := ev.Record

	platform := "Android"
	if rec.Platform == pathutil.PlatformIOS {
		platform = "iOS"
	}

	lines := []string{
		fmt.Sprintf("### %s 新版本发布", rec.ProjectName),
		fmt.Sprintf("**版本**: %s (Build: %s)", rec.Version, rec.BuildNumber),
		fmt.Sprintf("**渠道**: %s", rec.Channel),
		fmt.Sprintf("**平台**: %s", platform),
		fmt.Sprintf("**时间**: %s", rec.UploadedAt.Format("2006-01-02 15:04:05")),
	}
	if rec.ResVersion != "" {
		lines = append(lines, fmt.Sprintf("**资源**: %s", rec.ResVersion))
	}
	if rec.Branch != "" {
		lines = append(lines, fmt.Sprintf("**分支**: %s", rec.Branch))
	}
	lines = append(lines, fmt.Sprintf("[点击下载](%s) | [查看详情](%s)", ev.DownloadURL, ev.CenterURL))

	payload := markdownPayload{MsgType: "markdown"}
	payload.Markdown.Title = fmt.Sprintf("新版本发布通知: %s", rec.ProjectName)
	payload.Markdown.Text = strings.Join(lines, "\n\n")

	body, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}
