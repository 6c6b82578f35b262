package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestConfigGetString(t *testing.T) {
	v := viper.New()
	v.Set("name", "test")
	cfg := New(v)

	if got := cfg.GetString("name"); got != "test" {
		t.Errorf("GetString('name') = %q, want %q", got, "test")
	}
}

func TestConfigGetInt(t *testing.T) {
	v := viper.New()
	v.Set("host_max", 249)
	cfg := New(v)

	if got := cfg.GetInt("host_max"); got != 249 {
		t.Errorf("GetInt('host_max') = %d, want %d", got, 249)
	}
}

func TestConfigGetBool(t *testing.T) {
	v := viper.New()
	v.Set("enabled", true)
	cfg := New(v)

	if got := cfg.GetBool("enabled"); !got {
		t.Error("GetBool('enabled') = false, want true")
	}
}

func TestConfigGetDuration(t *testing.T) {
	v := viper.New()
	v.Set("poll_interval", "2s")
	cfg := New(v)

	want := 2 * time.Second
	if got := cfg.GetDuration("poll_interval"); got != want {
		t.Errorf("GetDuration('poll_interval') = %v, want %v", got, want)
	}
}

func TestConfigIsSet(t *testing.T) {
	v := viper.New()
	v.Set("exists", true)
	cfg := New(v)

	if !cfg.IsSet("exists") {
		t.Error("IsSet('exists') = false, want true")
	}
	if cfg.IsSet("missing") {
		t.Error("IsSet('missing') = true, want false")
	}
}

func TestConfigSub(t *testing.T) {
	v := viper.New()
	v.Set("plugins.dremel.enabled", true)
	v.Set("plugins.dremel.host_min", 2)
	cfg := New(v)

	sub := cfg.Sub("plugins.dremel")
	if sub == nil {
		t.Fatal("Sub('plugins.dremel') = nil")
	}
	if got := sub.GetBool("enabled"); !got {
		t.Error("sub.GetBool('enabled') = false, want true")
	}
	if got := sub.GetInt("host_min"); got != 2 {
		t.Errorf("sub.GetInt('host_min') = %d, want %d", got, 2)
	}
}

func TestConfigSubMissing(t *testing.T) {
	v := viper.New()
	cfg := New(v)

	sub := cfg.Sub("nonexistent")
	if sub == nil {
		t.Fatal("Sub('nonexistent') should return empty Config, not nil")
	}
	if got := sub.GetString("anything"); got != "" {
		t.Errorf("empty sub GetString() = %q, want empty", got)
	}
}

func TestConfigUnmarshal(t *testing.T) {
	v := viper.New()
	v.Set("subnet", "192.168.1")
	v.Set("host_max", 249)
	cfg := New(v)

	var target struct {
		Subnet  string `mapstructure:"subnet"`
		HostMax int    `mapstructure:"host_max"`
	}
	if err := cfg.Unmarshal(&target); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if target.Subnet != "192.168.1" {
		t.Errorf("Subnet = %q, want %q", target.Subnet, "192.168.1")
	}
	if target.HostMax != 249 {
		t.Errorf("HostMax = %d, want %d", target.HostMax, 249)
	}
}

func TestNilViper(t *testing.T) {
	cfg := New(nil)

	if got := cfg.GetString("anything"); got != "" {
		t.Errorf("nil viper GetString() = %q, want empty", got)
	}
	if cfg.GetInt("anything") != 0 {
		t.Error("nil viper GetInt() != 0")
	}
	if cfg.GetBool("anything") {
		t.Error("nil viper GetBool() = true")
	}
	if cfg.Sub("anything") == nil {
		t.Error("nil viper Sub() = nil, want empty Config")
	}
	if err := cfg.Unmarshal(&struct{}{}); err != nil {
		t.Errorf("nil viper Unmarshal() error = %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	v, err := Load("")
	if err != nil {
		t.Fatalf("Load('') error = %v", err)
	}
	cfg := New(v)

	if got := cfg.GetInt("plugins.dremel.host_min"); got != 2 {
		t.Errorf("default host_min = %d, want 2", got)
	}
	if got := cfg.GetInt("plugins.dremel.host_max"); got != 249 {
		t.Errorf("default host_max = %d, want 249", got)
	}
	if got := cfg.GetDuration("plugins.dremel.poll_interval"); got != 2*time.Second {
		t.Errorf("default poll_interval = %v, want 2s", got)
	}
	if got := cfg.GetDuration("plugins.dremel.probe_timeout"); got != time.Second {
		t.Errorf("default probe_timeout = %v, want 1s", got)
	}
}
