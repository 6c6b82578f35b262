package dremel

import (
	"context"

	"go.uber.org/zap"

	"github.com/mbeckett/dremelink/pkg/plugin"
)

// User-facing message texts. These are stable strings a UI can key off.
const (
	noticeBusy           = "Dremel printer is busy. Please wait until the current print job is finished."
	noticeUploading      = "Uploading to Dremel printer"
	noticeUploaded       = "Print job uploaded to Dremel printer successfully."
	noticeStartFailed    = "Failed to start print job on Dremel printer."
	noticeUploadFailed   = "Failed to upload print job to Dremel printer."
	noticeUploadErrorFmt = "Error uploading to Dremel printer: %s"
)

// Notifier publishes user-facing notices on the event bus.
type Notifier struct {
	bus    plugin.EventBus
	logger *zap.Logger
}

// NewNotifier creates a notifier publishing on the given bus.
func NewNotifier(bus plugin.EventBus, logger *zap.Logger) *Notifier {
	return &Notifier{bus: bus, logger: logger}
}

// Info publishes an informational notice.
func (n *Notifier) Info(ctx context.Context, text string) {
	n.publish(ctx, Notice{Level: NoticeInfo, Text: text})
}

// Error publishes an error notice.
func (n *Notifier) Error(ctx context.Context, text string) {
	n.logger.Warn("user notice", zap.String("text", text))
	n.publish(ctx, Notice{Level: NoticeError, Text: text})
}

// Progress publishes a notice with a progress bar attached.
func (n *Notifier) Progress(ctx context.Context, text string, progress float64) {
	n.publish(ctx, Notice{
		Level:       NoticeInfo,
		Text:        text,
		HasProgress: true,
		Progress:    progress,
	})
}

// Hide tells subscribers to dismiss the notice currently showing text.
func (n *Notifier) Hide(ctx context.Context, text string) {
	n.publish(ctx, Notice{Level: NoticeInfo, Text: text, Hide: true})
}

func (n *Notifier) publish(ctx context.Context, notice Notice) {
	n.bus.Publish(ctx, plugin.Event{
		Topic:   TopicNotice,
		Source:  ModuleName,
		Payload: notice,
	})
}
