// Package models holds the data types shared between dremelink modules
// and API consumers.
package models

import (
	"fmt"
	"time"
)

// DeviceIDPrefix is prepended to a printer's IP to form its device ID.
const DeviceIDPrefix = "dremel:"

// PrinterID derives the device ID for a printer at the given IP address.
// At most one printer record exists per IP.
func PrinterID(ip string) string {
	return DeviceIDPrefix + ip
}

// Printer is one Dremel printer discovered on the local network.
// A record is created when a status probe succeeds and is immutable
// afterwards except for LastSeen.
type Printer struct {
	ID      string `json:"id"`      // "dremel:" + IP
	Name    string `json:"name"`    // machine.name from the probe reply, or "Dremel <ip>"
	Address string `json:"address"` // IPv4 address
	BaseURL string `json:"base_url"`

	// Properties carries the raw JSON object the printer answered the
	// discovery probe with. Shape is vendor-defined and not validated.
	Properties map[string]any `json:"properties,omitempty"`

	// Display metadata surfaced to API consumers.
	ShortDescription string `json:"short_description,omitempty"`
	IconName         string `json:"icon_name,omitempty"`
	Priority         int    `json:"priority,omitempty"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// NewPrinter builds a Printer record for a responding address. name may be
// empty, in which case a default "Dremel <ip>" display name is used.
func NewPrinter(ip, name string, properties map[string]any) *Printer {
	if name == "" {
		name = fmt.Sprintf("Dremel %s", ip)
	}
	now := time.Now().UTC()
	return &Printer{
		ID:               PrinterID(ip),
		Name:             name,
		Address:          ip,
		BaseURL:          fmt.Sprintf("http://%s/", ip),
		Properties:       properties,
		ShortDescription: "Print with Dremel",
		IconName:         "print",
		Priority:         2,
		FirstSeen:        now,
		LastSeen:         now,
	}
}

// ConnectionState is a snapshot of one printer connection, maintained by
// the status poll loop.
type ConnectionState struct {
	Connected bool    `json:"connected"`
	Printing  bool    `json:"printing"`
	Progress  float64 `json:"progress"` // percent, 0-100
}

// JobStatus is the lifecycle state of a print job submission.
type JobStatus string

const (
	JobUploaded JobStatus = "uploaded" // file accepted, start not yet confirmed
	JobStarted  JobStatus = "started"  // printfile command accepted
	JobFailed   JobStatus = "failed"   // upload or start rejected
)

// Job records one print-job submission to a printer.
type Job struct {
	ID          string    `json:"id"`
	PrinterID   string    `json:"printer_id"`
	FileName    string    `json:"file_name"`
	Status      JobStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}
