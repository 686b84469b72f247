package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zhaocg/app-download-center/internal/modules/model"
)

// Event describes one committed upload for outbound notification.
type Event struct {
	Record      *model.FileRecord
	DownloadURL string
	CenterURL   string
	Replaced    bool
}

// Notifier delivers one event to an external collaborator.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Dispatcher fans an event out to its sinks without blocking the caller.
// Sink failures never reach the upload response: they are pushed onto an
// internal error channel and drained by a logging goroutine.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	errs      chan error
	log       *zap.Logger
}

func NewDispatcher(log *zap.Logger, timeout time.Duration, notifiers ...Notifier) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		notifiers: notifiers,
		timeout:   timeout,
		errs:      make(chan error, 16),
		log:       log,
	}
}

// Dispatch hands the event to every sink and returns immediately.
func (d *Dispatcher) Dispatch(ev Event) {
	for _, n := range d.notifiers {
		go func(n Notifier) {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			if err := n.Notify(ctx, ev); err != nil {
				select {
				case d.errs <- err:
				default:
				}
			}
		}(n)
	}
}

// Errs exposes the sink error channel so tests can observe failures the
// request path never sees. The send side never blocks: when nothing drains
// the channel, overflowing errors are dropped.
func (d *Dispatcher) Errs() <-chan error { return d.errs }

// LogErrors drains the error channel into the logger. Run it as a goroutine
// at process start; it exits when the process does.
func (d *Dispatcher) LogErrors() {
	for err := range d.errs {
		d.log.Warn("notification delivery failed", zap.Error(err))
	}
}
