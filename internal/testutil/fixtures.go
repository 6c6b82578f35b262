package testutil

import (
	"time"

	"github.com/mbeckett/dremelink/pkg/models"
)

// NewPrinter returns a Printer with sensible defaults, suitable for test
// fixtures. Override individual fields after creation as needed.
func NewPrinter(opts ...func(*models.Printer)) *models.Printer {
	p := models.NewPrinter("192.168.1.42", "Dremel 3D45", map[string]any{
		"machine": map[string]any{"name": "Dremel 3D45"},
	})
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithAddress sets the printer's IP address and the fields derived from it.
func WithAddress(ip string) func(*models.Printer) {
	return func(p *models.Printer) {
		p.Address = ip
		p.ID = models.PrinterID(ip)
		p.BaseURL = "http://" + ip + "/"
	}
}

// WithName sets the printer's display name.
func WithName(name string) func(*models.Printer) {
	return func(p *models.Printer) { p.Name = name }
}

// WithLastSeen sets the printer's last_seen timestamp.
func WithLastSeen(t time.Time) func(*models.Printer) {
	return func(p *models.Printer) { p.LastSeen = t }
}
