// Package plugin defines the contracts between the dremelink host and its
// modules. A module implements Plugin plus whichever optional capability
// interfaces it needs; the host supplies shared services via Dependencies.
package plugin

import (
	"context"
	"net/http"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Plugin API version bounds. Modules built against versions outside
// [APIVersionMin, APIVersionCurrent] are disabled (or rejected when
// Required) at validation.
const (
	APIVersionMin     = 1
	APIVersionCurrent = 1
)

// PluginInfo describes a module to the registry.
type PluginInfo struct {
	// Name is the module's unique identifier (e.g. "dremel").
	Name string `json:"name"`

	// Version is the module's semantic version.
	Version string `json:"version"`

	// Description is a short human-readable summary.
	Description string `json:"description"`

	// Dependencies lists names of modules that must be registered
	// before this one starts.
	Dependencies []string `json:"dependencies,omitempty"`

	// Required marks a module the host cannot run without. A failing
	// required module aborts startup; a failing optional one is
	// disabled and startup continues.
	Required bool `json:"required,omitempty"`

	// APIVersion is the plugin API version the module was built against.
	APIVersion int `json:"api_version"`
}

// Dependencies carries the shared services the host injects into a module
// at Init time. Fields may be nil when the host runs without that service;
// modules must tolerate nil Bus and Store.
type Dependencies struct {
	Logger *zap.Logger
	Bus    EventBus
	Store  Store
	Config *viper.Viper
}

// Plugin is the lifecycle every dremelink module implements.
type Plugin interface {
	// Info returns static metadata about the module.
	Info() PluginInfo

	// Init prepares the module with its dependencies. Called once,
	// before Start.
	Init(ctx context.Context, deps Dependencies) error

	// Start begins the module's background operations. The context is
	// cancelled at shutdown; all background work must stop with it.
	Start(ctx context.Context) error

	// Stop gracefully shuts the module down.
	Stop(ctx context.Context) error
}

// Route is an HTTP endpoint exposed by a module. The host mounts it under
// /api/v1/{module-name}{Path}.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}
