package dremel

import (
	"bytes"
	"testing"
)

func TestGCodeExporterConcatenatesMeshNodes(t *testing.T) {
	e := &GCodeExporter{}
	nodes := []SceneNode{
		&DataNode{NodeName: "a", Payload: []byte("G28\n")},
		&DataNode{NodeName: "skip"},
		&DataNode{NodeName: "b", Payload: []byte("G1 X10\n")},
	}

	var buf bytes.Buffer
	if err := e.Export(nodes, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if got := buf.String(); got != "G28\nG1 X10\n" {
		t.Errorf("exported = %q", got)
	}
}

func TestGCodeExporterNoPrintableNodes(t *testing.T) {
	e := &GCodeExporter{}
	var buf bytes.Buffer
	if err := e.Export([]SceneNode{&DataNode{NodeName: "empty"}}, &buf); err == nil {
		t.Error("Export with no mesh nodes should fail")
	}
}

func TestExporterRegistry(t *testing.T) {
	r := NewExporterRegistry()
	if r.Get(ExporterLocalFile) == nil {
		t.Fatal("local file exporter should be preinstalled")
	}
	if r.Get("no_such_exporter") != nil {
		t.Error("unknown exporter should return nil")
	}

	custom := &GCodeExporter{}
	r.Register("custom", custom)
	if r.Get("custom") != custom {
		t.Error("registered exporter not returned")
	}
}
