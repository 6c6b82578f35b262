package dremel

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mbeckett/dremelink/internal/services"
	"github.com/mbeckett/dremelink/pkg/models"
	"github.com/mbeckett/dremelink/pkg/plugin"
)

// Manager owns the active printer connections. Each connection gets its
// own poll goroutine, cancelled individually on Remove and collectively
// on Stop.
type Manager struct {
	logger    *zap.Logger
	bus       plugin.EventBus
	notifier  *Notifier
	jobs      services.JobRepository
	exporters *ExporterRegistry
	metrics   *Metrics
	connOpts  ConnectionOptions

	mu      sync.Mutex
	conns   map[string]*managedConn
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type managedConn struct {
	conn   *Connection
	cancel context.CancelFunc
}

// NewManager creates a manager. Connections added before Stop share a
// base context owned by the manager.
func NewManager(logger *zap.Logger, bus plugin.EventBus, notifier *Notifier,
	jobs services.JobRepository, exporters *ExporterRegistry, metrics *Metrics,
	connOpts ConnectionOptions) *Manager {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Manager{
		logger:    logger,
		bus:       bus,
		notifier:  notifier,
		jobs:      jobs,
		exporters: exporters,
		metrics:   metrics,
		connOpts:  connOpts,
		conns:     make(map[string]*managedConn),
		baseCtx:   baseCtx,
		cancel:    cancel,
	}
}

// Add starts tracking a printer. Adding a printer that is already
// tracked is a no-op.
func (m *Manager) Add(ctx context.Context, printer models.Printer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.baseCtx.Err() != nil {
		return
	}
	if _, exists := m.conns[printer.ID]; exists {
		return
	}

	conn := NewConnection(m.logger, m.bus, m.notifier, m.jobs, m.exporters,
		m.metrics, printer, m.connOpts)
	connCtx, cancel := context.WithCancel(m.baseCtx)
	m.conns[printer.ID] = &managedConn{conn: conn, cancel: cancel}

	if m.metrics != nil {
		m.metrics.ActivePrinters.Inc()
	}
	m.logger.Info("tracking printer",
		zap.String("id", printer.ID), zap.String("address", printer.Address))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		conn.Run(connCtx)
	}()
}

// Remove stops tracking a printer, cancelling its poll loop.
func (m *Manager) Remove(ctx context.Context, id string) bool {
	m.mu.Lock()
	mc, exists := m.conns[id]
	if exists {
		delete(m.conns, id)
	}
	m.mu.Unlock()

	if !exists {
		return false
	}
	mc.cancel()
	if m.metrics != nil {
		m.metrics.ActivePrinters.Dec()
	}
	m.logger.Info("stopped tracking printer", zap.String("id", id))
	m.bus.Publish(ctx, plugin.Event{
		Topic:   TopicDeviceRemoved,
		Source:  ModuleName,
		Payload: DeviceRemovedEvent{DeviceID: id},
	})
	return true
}

// Get returns the connection for a printer ID, or nil.
func (m *Manager) Get(id string) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mc, exists := m.conns[id]; exists {
		return mc.conn
	}
	return nil
}

// All returns the tracked connections.
func (m *Manager) All() []*Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	conns := make([]*Connection, 0, len(m.conns))
	for _, mc := range m.conns {
		conns = append(conns, mc.conn)
	}
	return conns
}

// Stop cancels every poll loop and waits for them to exit.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
	m.mu.Lock()
	m.conns = make(map[string]*managedConn)
	m.mu.Unlock()
}
