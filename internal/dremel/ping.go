package dremel

import (
	"context"
	"fmt"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// Pinger answers whether a host responds to ICMP at all. The scanner can
// use it to skip the HTTP probe for hosts that are plainly down.
type Pinger interface {
	Reachable(ctx context.Context, target string) bool
}

// ICMPPinger pings targets via pro-bing with a single echo request.
type ICMPPinger struct {
	timeout time.Duration
}

// NewICMPPinger creates an ICMP pinger with the given per-host timeout.
func NewICMPPinger(timeout time.Duration) *ICMPPinger {
	return &ICMPPinger{timeout: timeout}
}

// Reachable reports whether the target answered at least one echo request.
// Errors are treated as unreachable; the HTTP probe is the authority on
// whether a printer is actually there.
func (p *ICMPPinger) Reachable(ctx context.Context, target string) bool {
	pinger, err := probing.NewPinger(target)
	if err != nil {
		return false
	}

	pinger.Count = 1
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case runErr := <-done:
		if runErr != nil {
			return false
		}
		return pinger.Statistics().PacketsRecv > 0
	case <-ctx.Done():
		pinger.Stop()
		return false
	}
}

func (p *ICMPPinger) String() string {
	return fmt.Sprintf("icmp pinger (timeout %s)", p.timeout)
}
