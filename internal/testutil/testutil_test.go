package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/mbeckett/dremelink/pkg/plugin"
)

func TestLogger_NotNil(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewStore_Usable(t *testing.T) {
	db := NewStore(t)
	if db == nil {
		t.Fatal("expected non-nil store")
	}
	if err := db.DB().PingContext(context.Background()); err != nil {
		t.Fatalf("PingContext: %v", err)
	}
}

func TestMockBus_RecordsEvents(t *testing.T) {
	bus := NewMockBus()

	ev := plugin.Event{Topic: "dremel.scan.started", Source: "dremel"}
	if err := bus.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	bus.PublishAsync(context.Background(), plugin.Event{Topic: "dremel.scan.completed", Source: "dremel"})

	events := bus.Events()
	if len(events) != 2 {
		t.Fatalf("Events len = %d, want 2", len(events))
	}
	if events[0].Topic != "dremel.scan.started" {
		t.Errorf("events[0].Topic = %q, want dremel.scan.started", events[0].Topic)
	}

	byTopic := bus.EventsByTopic("dremel.scan.completed")
	if len(byTopic) != 1 {
		t.Fatalf("EventsByTopic len = %d, want 1", len(byTopic))
	}
}

func TestMockBus_Reset(t *testing.T) {
	bus := NewMockBus()
	_ = bus.Publish(context.Background(), plugin.Event{Topic: "a"})
	bus.Reset()
	if len(bus.Events()) != 0 {
		t.Error("expected empty events after Reset")
	}
}

func TestClock_Advance(t *testing.T) {
	c := NewClock()
	start := c.Now()
	c.Advance(5 * time.Minute)
	if got := c.Now().Sub(start); got != 5*time.Minute {
		t.Errorf("Advance: elapsed = %v, want 5m", got)
	}
}

func TestClock_Set(t *testing.T) {
	c := NewClock()
	target := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)
	c.Set(target)
	if !c.Now().Equal(target) {
		t.Errorf("Set: got %v, want %v", c.Now(), target)
	}
}

func TestNewPrinter_Defaults(t *testing.T) {
	p := NewPrinter()
	if p.ID != "dremel:192.168.1.42" {
		t.Errorf("ID = %q, want dremel:192.168.1.42", p.ID)
	}
	if p.BaseURL != "http://192.168.1.42/" {
		t.Errorf("BaseURL = %q, want http://192.168.1.42/", p.BaseURL)
	}
}

func TestNewPrinter_WithOptions(t *testing.T) {
	p := NewPrinter(
		WithAddress("10.0.0.9"),
		WithName("Workshop 3D45"),
	)
	if p.ID != "dremel:10.0.0.9" {
		t.Errorf("ID = %q, want dremel:10.0.0.9", p.ID)
	}
	if p.Name != "Workshop 3D45" {
		t.Errorf("Name = %q, want Workshop 3D45", p.Name)
	}
}
