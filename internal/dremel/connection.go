package dremel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mbeckett/dremelink/internal/services"
	"github.com/mbeckett/dremelink/pkg/models"
	"github.com/mbeckett/dremelink/pkg/plugin"
)

// ErrPrinterBusy is returned when a print is submitted while the printer
// is already building.
var ErrPrinterBusy = errors.New("printer is busy")

// ConnectionOptions bounds the timing of a printer connection.
type ConnectionOptions struct {
	PollInterval  time.Duration
	PollTimeout   time.Duration
	UploadTimeout time.Duration
	StartTimeout  time.Duration
}

func (o *ConnectionOptions) normalize() {
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = 5 * time.Second
	}
	if o.UploadTimeout <= 0 {
		o.UploadTimeout = 30 * time.Second
	}
	if o.StartTimeout <= 0 {
		o.StartTimeout = 10 * time.Second
	}
}

// Connection tracks one printer: it polls its status on an interval and
// submits print jobs to it. All state reads go through the mutex.
type Connection struct {
	logger    *zap.Logger
	bus       plugin.EventBus
	notifier  *Notifier
	jobs      services.JobRepository
	exporters *ExporterRegistry
	metrics   *Metrics
	printer   models.Printer
	client    *Client
	opts      ConnectionOptions

	mu    sync.Mutex
	state models.ConnectionState
}

// NewConnection creates a connection for the given printer. It does not
// poll until Run is called.
func NewConnection(logger *zap.Logger, bus plugin.EventBus, notifier *Notifier,
	jobs services.JobRepository, exporters *ExporterRegistry, metrics *Metrics,
	printer models.Printer, opts ConnectionOptions) *Connection {
	opts.normalize()
	return &Connection{
		logger:    logger.With(zap.String("printer", printer.ID)),
		bus:       bus,
		notifier:  notifier,
		jobs:      jobs,
		exporters: exporters,
		metrics:   metrics,
		// No client-level timeout: polls, uploads, and print starts each
		// carry their own deadline, and an http.Client timeout would cap
		// the longer ones at the shortest.
		printer: printer,
		client:  NewClient(printer.BaseURL, 0),
		opts:    opts,
	}
}

// Printer returns the printer this connection tracks.
func (c *Connection) Printer() models.Printer { return c.printer }

// State returns a snapshot of the connection state.
func (c *Connection) State() models.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run polls the printer until the context is cancelled. The first poll
// happens immediately.
func (c *Connection) Run(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	c.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

func (c *Connection) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, c.opts.PollTimeout)
	status, err := c.client.Status(pollCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Debug("status poll failed", zap.Error(err))
		if c.metrics != nil {
			c.metrics.PollErrors.Inc()
		}
		c.setDisconnected(ctx)
		return
	}
	c.applyStatus(ctx, status)
}

// setDisconnected flips the connected flag. Printing is left alone: a
// failed poll says nothing about the build, and clearing it would let a
// second job past the busy check mid-print.
func (c *Connection) setDisconnected(ctx context.Context) {
	c.mu.Lock()
	wasConnected := c.state.Connected
	c.state.Connected = false
	c.mu.Unlock()

	if wasConnected {
		c.logger.Info("printer disconnected")
		c.publishState(ctx, false)
	}
}

func (c *Connection) applyStatus(ctx context.Context, status *PrinterStatus) {
	printing := status.Printing()

	c.mu.Lock()
	wasConnected := c.state.Connected
	prevProgress := c.state.Progress
	c.state.Connected = true
	c.state.Printing = printing
	// Progress is only meaningful mid-build; idle firmware keeps
	// reporting the last job's value.
	if printing {
		c.state.Progress = status.BuildProgress
	}
	c.mu.Unlock()

	if !wasConnected {
		c.logger.Info("printer connected")
		c.publishState(ctx, true)
	}
	if printing && status.BuildProgress != prevProgress {
		c.publishProgress(ctx, status.BuildProgress)
	}
}

func (c *Connection) publishState(ctx context.Context, connected bool) {
	c.bus.Publish(ctx, plugin.Event{
		Topic:   TopicPrinterState,
		Source:  ModuleName,
		Payload: StateEvent{DeviceID: c.printer.ID, Connected: connected},
	})
}

func (c *Connection) publishProgress(ctx context.Context, progress float64) {
	c.bus.Publish(ctx, plugin.Event{
		Topic:   TopicPrinterProgress,
		Source:  ModuleName,
		Payload: ProgressEvent{DeviceID: c.printer.ID, Progress: progress},
	})
}

// RequestWrite exports the given nodes and submits them as a print job.
// A printer mid-build refuses the job without any network traffic.
func (c *Connection) RequestWrite(ctx context.Context, nodes []SceneNode, fileName string) error {
	c.mu.Lock()
	printing := c.state.Printing
	c.mu.Unlock()
	if printing {
		c.notifier.Info(ctx, noticeBusy)
		return ErrPrinterBusy
	}

	exporter := c.exporters.Get(ExporterLocalFile)
	if exporter == nil {
		c.logger.Error("exporter not registered", zap.String("id", ExporterLocalFile))
		return fmt.Errorf("exporter %q not registered", ExporterLocalFile)
	}

	if fileName == "" {
		fileName = FileNameForNodes(nodes, exporter.FileExtension())
	}

	var buf bytes.Buffer
	if err := exporter.Export(nodes, &buf); err != nil {
		c.logger.Error("export failed", zap.Error(err))
		return err
	}

	job := models.Job{PrinterID: c.printer.ID, FileName: fileName}
	if err := c.jobs.Create(ctx, &job); err != nil {
		c.logger.Error("failed to record job", zap.Error(err))
		return err
	}

	c.notifier.Progress(ctx, noticeUploading, 0)

	uploadCtx, cancel := context.WithTimeout(ctx, c.opts.UploadTimeout)
	err := c.client.Upload(uploadCtx, fileName, &buf)
	cancel()
	c.notifier.Hide(ctx, noticeUploading)
	if err != nil {
		return c.failJob(ctx, job.ID, fileName, uploadFailureText(err), err)
	}

	c.notifier.Info(ctx, noticeUploaded)

	startCtx, cancel := context.WithTimeout(ctx, c.opts.StartTimeout)
	err = c.client.StartPrint(startCtx, fileName)
	cancel()
	if err != nil {
		return c.failJob(ctx, job.ID, fileName, noticeStartFailed, err)
	}

	c.mu.Lock()
	c.state.Printing = true
	c.state.Progress = 0
	c.mu.Unlock()
	c.publishProgress(ctx, 0)

	if updateErr := c.jobs.UpdateStatus(ctx, job.ID, models.JobStarted, ""); updateErr != nil {
		c.logger.Warn("failed to update job status", zap.Error(updateErr))
	}
	if c.metrics != nil {
		c.metrics.UploadsTotal.WithLabelValues("started").Inc()
	}
	c.logger.Info("print job started",
		zap.String("job", job.ID), zap.String("file", fileName))
	c.bus.Publish(ctx, plugin.Event{
		Topic:  TopicJobStarted,
		Source: ModuleName,
		Payload: JobEvent{
			DeviceID: c.printer.ID,
			JobID:    job.ID,
			FileName: fileName,
		},
	})
	return nil
}

func (c *Connection) failJob(ctx context.Context, jobID, fileName, noticeText string, cause error) error {
	c.logger.Error("print job failed",
		zap.String("job", jobID), zap.String("file", fileName), zap.Error(cause))
	c.notifier.Error(ctx, noticeText)
	if updateErr := c.jobs.UpdateStatus(ctx, jobID, models.JobFailed, cause.Error()); updateErr != nil {
		c.logger.Warn("failed to update job status", zap.Error(updateErr))
	}
	if c.metrics != nil {
		c.metrics.UploadsTotal.WithLabelValues("failed").Inc()
	}
	c.bus.Publish(ctx, plugin.Event{
		Topic:  TopicJobFailed,
		Source: ModuleName,
		Payload: JobEvent{
			DeviceID: c.printer.ID,
			JobID:    jobID,
			FileName: fileName,
			Error:    cause.Error(),
		},
	})
	return cause
}

// uploadFailureText picks between the two upload failure messages: one
// for a printer that answered with an error, one for transport trouble.
func uploadFailureText(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return noticeUploadFailed
	}
	return fmt.Sprintf(noticeUploadErrorFmt, err.Error())
}
