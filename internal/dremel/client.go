package dremel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// The vendor firmware exposes a single /command endpoint. The request
// shapes below must be reproduced exactly; the printer rejects anything
// else.
const (
	commandPath         = "command"
	statusCommand       = "getprinterstatus"
	uploadCommand       = "upload"
	printFileCommand    = "printfile"
	statusContentType   = "text/plain"
	buildStatusBuilding = "building"
	buildStatusPrinting = "printing"
)

// HTTPError reports a printer reply with a non-OK status code.
type HTTPError struct {
	Op   string
	Code int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.Op, e.Code)
}

// PrinterStatus is the parsed reply to a status probe. Raw preserves the
// full JSON object for callers that keep vendor properties around.
type PrinterStatus struct {
	MachineName   string
	BuildStatus   string
	BuildProgress float64
	Raw           map[string]any
}

// Printing reports whether the build status indicates an active print.
// The comparison is case-insensitive; firmware revisions disagree on
// capitalization.
func (s *PrinterStatus) Printing() bool {
	switch strings.ToLower(s.BuildStatus) {
	case buildStatusBuilding, buildStatusPrinting:
		return true
	}
	return false
}

// Client speaks the Dremel HTTP command protocol to one printer.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the printer reachable at baseURL
// (e.g. "http://192.168.1.7/"). A non-zero timeout caps every request;
// pass zero to bound requests with per-call contexts instead.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the printer's base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Status requests the printer status. Any JSON reply counts, even an
// empty one: a printer mid-boot answers 200 with no details and is
// still connected.
func (c *Client) Status(ctx context.Context) (*PrinterStatus, error) {
	body, err := c.statusBody(ctx)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("status body is not JSON: %w", err)
	}
	return statusFromValue(v), nil
}

// Probe is the discovery variant of Status: the reply must additionally
// be non-empty in the truthy sense, so a generic web server answering
// the command with empty JSON does not register as a printer.
func (c *Client) Probe(ctx context.Context) (*PrinterStatus, error) {
	body, err := c.statusBody(ctx)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("status body is not JSON: %w", err)
	}
	if !truthyJSON(v) {
		return nil, fmt.Errorf("status body is empty JSON")
	}
	return statusFromValue(v), nil
}

func (c *Client) statusBody(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+commandPath, strings.NewReader(statusCommand))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", statusContentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Op: "status request", Code: resp.StatusCode}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// Upload sends a G-code file to the printer as a multipart form with the
// vendor's command=upload field.
func (c *Client) Upload(ctx context.Context, fileName string, gcode io.Reader) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("command", uploadCommand); err != nil {
		return err
	}
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, gcode); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+commandPath, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HTTPError{Op: "upload", Code: resp.StatusCode}
	}
	return nil
}

// StartPrint asks the printer to print a previously uploaded file.
func (c *Client) StartPrint(ctx context.Context, fileName string) error {
	form := url.Values{}
	form.Set("command", printFileCommand)
	form.Set("filename", fileName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+commandPath, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HTTPError{Op: "start print", Code: resp.StatusCode}
	}
	return nil
}

// statusFromValue extracts the machine and build details from a decoded
// status reply.
func statusFromValue(v any) *PrinterStatus {
	st := &PrinterStatus{}
	obj, ok := v.(map[string]any)
	if !ok {
		// A bare value still counts as a reply, just with no machine or
		// build details.
		return st
	}
	st.Raw = obj

	if machine, ok := obj["machine"].(map[string]any); ok {
		if name, ok := machine["name"].(string); ok {
			st.MachineName = name
		}
	}
	if build, ok := obj["build"].(map[string]any); ok {
		if status, ok := build["status"].(string); ok {
			st.BuildStatus = status
		}
		if progress, ok := build["progress"].(float64); ok {
			st.BuildProgress = progress
		}
	}
	return st
}

// truthyJSON mirrors the original firmware contract: any JSON value that
// is non-empty counts as a printer reply.
func truthyJSON(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case map[string]any:
		return len(val) > 0
	case []any:
		return len(val) > 0
	case string:
		return val != ""
	case float64:
		return val != 0
	case bool:
		return val
	}
	return false
}
