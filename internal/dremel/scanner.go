package dremel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mbeckett/dremelink/internal/services"
	"github.com/mbeckett/dremelink/pkg/models"
	"github.com/mbeckett/dremelink/pkg/plugin"
)

// ScanOptions controls one discovery sweep.
type ScanOptions struct {
	// Subnet is the first three octets ("192.168.1"). Empty means
	// auto-detect from the local interfaces.
	Subnet string
	// HostMin and HostMax bound the last octet, inclusive.
	HostMin int
	HostMax int
	// ProbeTimeout bounds each status probe.
	ProbeTimeout time.Duration
	// MaxConcurrent caps in-flight probes.
	MaxConcurrent int
	// ProbesPerSecond throttles probe starts. Zero disables the limiter.
	ProbesPerSecond int
	// PingFirst skips the HTTP probe for hosts that ignore ICMP.
	PingFirst bool
}

func (o *ScanOptions) normalize() {
	if o.HostMin <= 0 {
		o.HostMin = 2
	}
	if o.HostMax <= 0 || o.HostMax > 254 {
		o.HostMax = 249
	}
	if o.HostMax < o.HostMin {
		o.HostMax = o.HostMin
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = time.Second
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 32
	}
}

// Registrar receives printers as the scanner finds them.
type Registrar interface {
	Add(ctx context.Context, printer models.Printer)
}

// Scanner sweeps a subnet for printers that answer the status command.
type Scanner struct {
	logger  *zap.Logger
	bus     plugin.EventBus
	repo    services.PrinterRepository
	manager Registrar
	pinger  Pinger
	metrics *Metrics
	opts    ScanOptions

	// probe is swappable in tests.
	probe func(ctx context.Context, ip string) (*PrinterStatus, error)

	// subnetOverride, when set, is consulted first for the sweep subnet.
	// It backs the scan_subnet runtime setting.
	subnetOverride func(ctx context.Context) string

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// NewScanner creates a scanner. pinger may be nil to disable the ICMP
// pre-check regardless of options.
func NewScanner(logger *zap.Logger, bus plugin.EventBus, repo services.PrinterRepository,
	manager Registrar, pinger Pinger, metrics *Metrics, opts ScanOptions) *Scanner {
	opts.normalize()
	s := &Scanner{
		logger:  logger,
		bus:     bus,
		repo:    repo,
		manager: manager,
		pinger:  pinger,
		metrics: metrics,
		opts:    opts,
	}
	s.probe = s.probeHTTP
	return s
}

// Start launches a discovery sweep in the background. A sweep already in
// progress is left alone.
func (s *Scanner) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Debug("discovery already running")
		return
	}
	scanCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.sweep(scanCtx)
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
	}()
}

// Stop cancels any in-progress sweep and waits for it to wind down.
func (s *Scanner) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Running reports whether a sweep is in progress.
func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scanner) sweep(ctx context.Context) {
	var subnet string
	if s.subnetOverride != nil {
		subnet = s.subnetOverride(ctx)
	}
	if subnet == "" {
		subnet = s.opts.Subnet
	}
	if subnet == "" {
		subnet = detectSubnet()
	}

	s.logger.Info("discovery started",
		zap.String("subnet", subnet),
		zap.Int("host_min", s.opts.HostMin),
		zap.Int("host_max", s.opts.HostMax))
	s.bus.Publish(ctx, plugin.Event{
		Topic:   TopicScanStarted,
		Source:  ModuleName,
		Payload: ScanEvent{Subnet: subnet},
	})

	var limiter *rate.Limiter
	if s.opts.ProbesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.ProbesPerSecond), s.opts.MaxConcurrent)
	}

	var (
		wg     sync.WaitGroup
		sem    = make(chan struct{}, s.opts.MaxConcurrent)
		mu     sync.Mutex
		probed int
		found  int
	)

	for host := s.opts.HostMin; host <= s.opts.HostMax; host++ {
		if ctx.Err() != nil {
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}

		ip := fmt.Sprintf("%s.%d", subnet, host)
		wg.Add(1)
		sem <- struct{}{}
		go func(ip string) {
			defer wg.Done()
			defer func() { <-sem }()

			mu.Lock()
			probed++
			mu.Unlock()

			if s.probeHost(ctx, ip) {
				mu.Lock()
				found++
				mu.Unlock()
			}
		}(ip)
	}
	wg.Wait()

	cancelled := ctx.Err() != nil
	s.logger.Info("discovery completed",
		zap.String("subnet", subnet),
		zap.Int("probed", probed),
		zap.Int("found", found),
		zap.Bool("cancelled", cancelled))
	// Publish on Background: the scan context may already be cancelled.
	s.bus.Publish(context.Background(), plugin.Event{
		Topic:  TopicScanCompleted,
		Source: ModuleName,
		Payload: ScanEvent{
			Subnet:    subnet,
			Probed:    probed,
			Found:     found,
			Cancelled: cancelled,
		},
	})
}

// probeHost checks one address and registers the printer if it answered.
func (s *Scanner) probeHost(ctx context.Context, ip string) bool {
	if s.opts.PingFirst && s.pinger != nil {
		if !s.pinger.Reachable(ctx, ip) {
			return false
		}
	}

	if s.metrics != nil {
		s.metrics.ProbesTotal.Inc()
	}

	status, err := s.probe(ctx, ip)
	if err != nil {
		// Most hosts simply don't answer; only log the unusual ones.
		if !isExpectedProbeError(err) {
			s.logger.Debug("probe failed", zap.String("ip", ip), zap.Error(err))
		}
		return false
	}

	printer := models.NewPrinter(ip, status.MachineName, status.Raw)
	created, err := s.repo.Upsert(ctx, printer)
	if err != nil {
		s.logger.Error("failed to store printer",
			zap.String("ip", ip), zap.Error(err))
		return false
	}

	topic := TopicDeviceUpdated
	if created {
		topic = TopicDeviceDiscovered
		if s.metrics != nil {
			s.metrics.DiscoveredTotal.Inc()
		}
	}
	s.logger.Info("printer found",
		zap.String("ip", ip),
		zap.String("id", printer.ID),
		zap.String("name", printer.Name))
	s.bus.Publish(ctx, plugin.Event{
		Topic:   topic,
		Source:  ModuleName,
		Payload: DeviceEvent{Printer: printer},
	})

	if s.manager != nil {
		s.manager.Add(ctx, *printer)
	}
	return true
}

func (s *Scanner) probeHTTP(ctx context.Context, ip string) (*PrinterStatus, error) {
	client := NewClient("http://"+ip+"/", s.opts.ProbeTimeout)
	return client.Probe(ctx)
}

// isExpectedProbeError reports whether the error is the ordinary outcome
// of probing an address with no printer behind it.
func isExpectedProbeError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no route to host") ||
		strings.Contains(msg, "status body is empty JSON") ||
		strings.Contains(msg, "status body is not JSON")
}

// detectSubnet returns the first three octets of the first non-loopback
// IPv4 interface address, falling back to 192.168.1.
func detectSubnet() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "192.168.1"
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() || ipnet.IP.To4() == nil {
			continue
		}
		parts := strings.Split(ipnet.IP.String(), ".")
		if len(parts) == 4 {
			return strings.Join(parts[:3], ".")
		}
	}
	return "192.168.1"
}
