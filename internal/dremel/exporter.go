package dremel

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// ExporterLocalFile is the exporter every print submission goes through.
const ExporterLocalFile = "local_file"

// DefaultFileName is used when no scene node yields a usable name.
const DefaultFileName = "dremel_print.gcode"

// SceneNode is the minimal view of a printable item the module needs.
type SceneNode interface {
	Name() string
	HasMesh() bool
	Open() (io.ReadCloser, error)
}

// Exporter serializes scene nodes into the byte stream sent to a printer.
type Exporter interface {
	FileExtension() string
	Export(nodes []SceneNode, w io.Writer) error
}

// ExporterRegistry maps exporter IDs to implementations.
type ExporterRegistry struct {
	mu        sync.RWMutex
	exporters map[string]Exporter
}

// NewExporterRegistry creates a registry with the local file exporter
// preinstalled.
func NewExporterRegistry() *ExporterRegistry {
	r := &ExporterRegistry{exporters: make(map[string]Exporter)}
	r.Register(ExporterLocalFile, &GCodeExporter{})
	return r
}

// Register installs an exporter under the given ID, replacing any
// previous one.
func (r *ExporterRegistry) Register(id string, e Exporter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exporters[id] = e
}

// Get returns the exporter registered under id, or nil.
func (r *ExporterRegistry) Get(id string) Exporter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exporters[id]
}

// GCodeExporter streams node contents verbatim. Dremel printers consume
// plain G-code, so export is concatenation of the mesh-bearing nodes.
type GCodeExporter struct{}

func (e *GCodeExporter) FileExtension() string { return "gcode" }

func (e *GCodeExporter) Export(nodes []SceneNode, w io.Writer) error {
	exported := 0
	for _, node := range nodes {
		if !node.HasMesh() {
			continue
		}
		rc, err := node.Open()
		if err != nil {
			return fmt.Errorf("open node %q: %w", node.Name(), err)
		}
		_, err = io.Copy(w, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("export node %q: %w", node.Name(), err)
		}
		exported++
	}
	if exported == 0 {
		return fmt.Errorf("no printable nodes")
	}
	return nil
}

// FileNameForNodes derives the upload file name: the first named node
// carrying a mesh, with the exporter's extension, or a fixed default.
func FileNameForNodes(nodes []SceneNode, ext string) string {
	for _, node := range nodes {
		if node.HasMesh() && node.Name() != "" {
			return node.Name() + "." + ext
		}
	}
	return DefaultFileName
}

// DataNode is a SceneNode backed by an in-memory payload. The HTTP
// handlers wrap uploaded files in one.
type DataNode struct {
	NodeName string
	Payload  []byte
}

func (n *DataNode) Name() string  { return n.NodeName }
func (n *DataNode) HasMesh() bool { return len(n.Payload) > 0 }

func (n *DataNode) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(n.Payload)), nil
}
