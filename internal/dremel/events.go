package dremel

import "github.com/mbeckett/dremelink/pkg/models"

// Event topics published by the Dremel module.
// ModuleName identifies this module in plugin metadata and as the event
// source on everything it publishes.
const ModuleName = "dremel"

const (
	TopicScanStarted   = "dremel.scan.started"
	TopicScanCompleted = "dremel.scan.completed"

	TopicDeviceDiscovered = "dremel.device.discovered"
	TopicDeviceUpdated    = "dremel.device.updated"
	TopicDeviceRemoved    = "dremel.device.removed"

	// TopicPrinterState fires when a connection flips between connected
	// and disconnected.
	TopicPrinterState = "dremel.printer.state"

	// TopicPrinterProgress fires when the reported build progress of a
	// printing device changes.
	TopicPrinterProgress = "dremel.printer.progress"

	TopicJobStarted = "dremel.job.started"
	TopicJobFailed  = "dremel.job.failed"

	// TopicNotice carries user-facing messages; a UI subscribes here the
	// way a desktop host would show status popups.
	TopicNotice = "dremel.notice"
)

// DeviceEvent is the payload for device discovery topics.
type DeviceEvent struct {
	Printer *models.Printer `json:"printer"`
}

// DeviceRemovedEvent is the payload for TopicDeviceRemoved.
type DeviceRemovedEvent struct {
	DeviceID string `json:"device_id"`
}

// StateEvent is the payload for TopicPrinterState.
type StateEvent struct {
	DeviceID  string `json:"device_id"`
	Connected bool   `json:"connected"`
}

// ProgressEvent is the payload for TopicPrinterProgress.
type ProgressEvent struct {
	DeviceID string  `json:"device_id"`
	Progress float64 `json:"progress"`
}

// JobEvent is the payload for job topics.
type JobEvent struct {
	DeviceID string `json:"device_id"`
	JobID    string `json:"job_id"`
	FileName string `json:"file_name"`
	Error    string `json:"error,omitempty"`
}

// ScanEvent is the payload for scan topics.
type ScanEvent struct {
	Subnet    string `json:"subnet"`
	Probed    int    `json:"probed,omitempty"`
	Found     int    `json:"found,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// NoticeLevel classifies a user-facing notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is the payload for TopicNotice. Progress is meaningful only when
// HasProgress is set; Hide marks the end of an earlier progress notice.
type Notice struct {
	Level       NoticeLevel `json:"level"`
	Text        string      `json:"text"`
	HasProgress bool        `json:"has_progress,omitempty"`
	Progress    float64     `json:"progress,omitempty"`
	Hide        bool        `json:"hide,omitempty"`
}
