package dremel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mbeckett/dremelink/internal/services"
	"github.com/mbeckett/dremelink/pkg/plugin"
)

// Module is the Dremel printer module: subnet discovery, per-printer
// status polling, and print job submission.
type Module struct {
	logger   *zap.Logger
	bus      plugin.EventBus
	printers services.PrinterRepository
	jobs     services.JobRepository
	settings services.SettingsRepository

	registerer prometheus.Registerer

	scanner   *Scanner
	manager   *Manager
	notifier  *Notifier
	exporters *ExporterRegistry
	metrics   *Metrics
	mdns      *MDNSListener

	mdnsEnabled  bool
	mdnsInterval time.Duration

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
)

// New creates the module. Wiring happens in Init.
func New() *Module {
	return &Module{registerer: prometheus.DefaultRegisterer}
}

// NewWithRegisterer creates the module with a dedicated metrics
// registerer. Tests use this to avoid collisions on the default one.
func NewWithRegisterer(reg prometheus.Registerer) *Module {
	return &Module{registerer: reg}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        ModuleName,
		Version:     "0.1.0",
		Description: "Dremel 3D printer discovery and print job submission",
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	if err := deps.Store.Migrate(ctx, ModuleName, Migrations); err != nil {
		return fmt.Errorf("dremel migrations: %w", err)
	}
	m.printers = services.NewSQLitePrinterRepository(deps.Store.DB())
	m.jobs = services.NewSQLiteJobRepository(deps.Store.DB())

	cfg := deps.Config
	if cfg == nil {
		cfg = viper.New()
	}

	m.metrics = NewMetrics(m.registerer)
	m.notifier = NewNotifier(deps.Bus, m.logger)
	m.exporters = NewExporterRegistry()

	connOpts := ConnectionOptions{
		PollInterval:  cfg.GetDuration("plugins.dremel.poll_interval"),
		PollTimeout:   cfg.GetDuration("plugins.dremel.poll_timeout"),
		UploadTimeout: cfg.GetDuration("plugins.dremel.upload_timeout"),
		StartTimeout:  cfg.GetDuration("plugins.dremel.start_timeout"),
	}
	m.manager = NewManager(m.logger, deps.Bus, m.notifier, m.jobs,
		m.exporters, m.metrics, connOpts)

	scanOpts := ScanOptions{
		Subnet:          cfg.GetString("plugins.dremel.subnet"),
		HostMin:         cfg.GetInt("plugins.dremel.host_min"),
		HostMax:         cfg.GetInt("plugins.dremel.host_max"),
		ProbeTimeout:    cfg.GetDuration("plugins.dremel.probe_timeout"),
		MaxConcurrent:   cfg.GetInt("plugins.dremel.max_concurrent_probes"),
		ProbesPerSecond: cfg.GetInt("plugins.dremel.probes_per_second"),
		PingFirst:       cfg.GetBool("plugins.dremel.ping_first"),
	}
	var pinger Pinger
	if scanOpts.PingFirst {
		pinger = NewICMPPinger(scanOpts.ProbeTimeout)
	}
	m.scanner = NewScanner(m.logger, deps.Bus, m.printers, m.manager,
		pinger, m.metrics, scanOpts)

	// A scan_subnet setting, when present, wins over config and
	// autodetection without a restart.
	settingsRepo, err := services.NewSQLiteSettingsRepository(ctx, deps.Store)
	if err != nil {
		return fmt.Errorf("settings repository: %w", err)
	}
	m.settings = settingsRepo
	m.scanner.subnetOverride = func(ctx context.Context) string {
		v, err := m.settings.Value(ctx, services.SettingScanSubnet)
		if err != nil {
			return ""
		}
		return v
	}

	m.mdnsEnabled = cfg.GetBool("plugins.dremel.mdns.enabled")
	m.mdnsInterval = cfg.GetDuration("plugins.dremel.mdns.interval")
	if m.mdnsInterval <= 0 {
		m.mdnsInterval = 5 * time.Minute
	}
	if m.mdnsEnabled {
		m.mdns = NewMDNSListener(m.scanner, m.logger, m.mdnsInterval)
	}

	m.logger.Info("dremel module initialized")
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	m.runCtx = runCtx
	m.runCancel = cancel

	// Resume polling printers discovered in earlier runs.
	if err := m.resumePrinters(ctx); err != nil {
		m.logger.Warn("failed to resume printers", zap.Error(err))
	}

	m.scanner.Start(runCtx)

	if m.mdns != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.mdns.Run(runCtx)
		}()
	}

	m.logger.Info("dremel module started")
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	if m.runCancel != nil {
		m.runCancel()
	}
	m.scanner.Stop()
	m.manager.Stop()
	m.wg.Wait()
	m.logger.Info("dremel module stopped")
	return nil
}

// ValidateConfig implements plugin.Validator. The registry calls it
// after Init, so the scanner's normalized options are in place.
func (m *Module) ValidateConfig() error {
	if subnet := m.scanner.opts.Subnet; subnet != "" && !services.ValidSubnetPrefix(subnet) {
		return fmt.Errorf("plugins.dremel.subnet %q is not a three-octet IPv4 prefix", subnet)
	}
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	tracked := len(m.manager.All())
	return plugin.HealthStatus{
		Healthy: true,
		Detail:  fmt.Sprintf("tracking %d printers", tracked),
	}
}

// scanContext returns the context discovery sweeps run under. Sweeps
// belong to the module lifecycle, not to the HTTP request that asked
// for them.
func (m *Module) scanContext() context.Context {
	if m.runCtx != nil {
		return m.runCtx
	}
	return context.Background()
}

// resumePrinters reloads persisted printers and starts their poll loops.
func (m *Module) resumePrinters(ctx context.Context) error {
	opts := services.ListOptions{Limit: 1000}
	result, err := m.printers.List(ctx, opts)
	if err != nil {
		return err
	}
	for _, p := range result.Items {
		m.manager.Add(ctx, p)
	}
	if len(result.Items) > 0 {
		m.logger.Info("resumed printers", zap.Int("count", len(result.Items)))
	}
	return nil
}
