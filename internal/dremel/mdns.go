//go:build !windows

package dremel

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// mdnsServices lists the service types Dremel printers are known to
// announce. Anything that answers is still confirmed over HTTP before
// being registered.
var mdnsServices = []string{
	"_printer._tcp",
	"_http._tcp",
}

// MDNSListener passively discovers printers via mDNS announcements and
// confirms candidates with a status probe.
type MDNSListener struct {
	scanner  *Scanner
	logger   *zap.Logger
	interval time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMDNSListener creates an mDNS listener that feeds candidate hosts
// into the scanner's probe path.
func NewMDNSListener(scanner *Scanner, logger *zap.Logger, interval time.Duration) *MDNSListener {
	return &MDNSListener{
		scanner:  scanner,
		logger:   logger,
		interval: interval,
		seen:     make(map[string]time.Time),
	}
}

// Run queries for printer services until ctx is cancelled. The first
// query happens immediately, then on the configured interval.
func (l *MDNSListener) Run(ctx context.Context) {
	l.logger.Info("mDNS listener started", zap.Duration("interval", l.interval))

	l.queryAll(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("mDNS listener stopped")
			return
		case <-ticker.C:
			l.queryAll(ctx)
		}
	}
}

func (l *MDNSListener) queryAll(ctx context.Context) {
	for _, svc := range mdnsServices {
		if ctx.Err() != nil {
			return
		}
		l.queryService(ctx, svc)
	}
}

func (l *MDNSListener) queryService(ctx context.Context, service string) {
	entries := make(chan *mdns.ServiceEntry, 16)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			l.processEntry(ctx, entry, service)
		}
	}()

	params := mdns.DefaultParams(service)
	params.Timeout = 3 * time.Second
	params.Entries = entries
	params.DisableIPv6 = true

	if err := mdns.Query(params); err != nil {
		l.logger.Debug("mDNS query failed",
			zap.String("service", service), zap.Error(err))
	}
	close(entries)
	wg.Wait()
}

func (l *MDNSListener) processEntry(ctx context.Context, entry *mdns.ServiceEntry, service string) {
	if entry == nil {
		return
	}
	ip := extractIP(entry)
	if ip == "" || l.recentlySeen(ip) {
		return
	}
	l.markSeen(ip)

	// The announcement only tells us something lives there; the status
	// probe decides whether it is a printer we can talk to.
	if l.scanner.probeHost(ctx, ip) {
		l.logger.Info("printer found via mDNS",
			zap.String("ip", ip), zap.String("service", service))
	}
}

func extractIP(entry *mdns.ServiceEntry) string {
	if entry.AddrV4 != nil && !entry.AddrV4.IsUnspecified() {
		return entry.AddrV4.String()
	}
	if entry.Addr != nil && !entry.Addr.IsUnspecified() {
		return entry.Addr.String()
	}
	return ""
}

func (l *MDNSListener) recentlySeen(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lastSeen, ok := l.seen[ip]
	return ok && time.Since(lastSeen) < l.interval
}

func (l *MDNSListener) markSeen(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[ip] = time.Now()
}
