// Package registry manages the lifecycle of dremelink modules: validation
// of the dependency graph, dependency-ordered init/start, and reverse-order
// shutdown.
package registry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mbeckett/dremelink/pkg/plugin"
)

// Registry holds registered modules. It is not safe for concurrent
// registration; register everything at startup, then Validate.
type Registry struct {
	plugins  map[string]plugin.Plugin
	order    []string // dependency order, computed by Validate
	disabled map[string]string
	logger   *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		plugins:  make(map[string]plugin.Plugin),
		disabled: make(map[string]string),
		logger:   logger,
	}
}

// Register adds a module. Names must be unique and non-empty.
func (r *Registry) Register(p plugin.Plugin) error {
	info := p.Info()
	if info.Name == "" {
		return fmt.Errorf("plugin has empty name")
	}
	if _, exists := r.plugins[info.Name]; exists {
		return fmt.Errorf("plugin %q already registered", info.Name)
	}

	r.plugins[info.Name] = p
	r.order = append(r.order, info.Name)
	r.logger.Info("plugin registered",
		zap.String("name", info.Name),
		zap.String("version", info.Version),
	)
	return nil
}

// Validate checks API versions and the dependency graph, computes the
// start order, and disables optional modules whose requirements cannot be
// met. Required modules with unmet requirements are a hard error.
func (r *Registry) Validate() error {
	// API version bounds first: a bad required module fails outright,
	// a bad optional one is disabled.
	for name, p := range r.plugins {
		info := p.Info()
		if info.APIVersion >= plugin.APIVersionMin && info.APIVersion <= plugin.APIVersionCurrent {
			continue
		}
		reason := fmt.Sprintf("API version %d outside supported range [%d, %d]",
			info.APIVersion, plugin.APIVersionMin, plugin.APIVersionCurrent)
		if info.Required {
			return fmt.Errorf("plugin %q: %s", name, reason)
		}
		r.disable(name, reason)
	}

	// Missing dependencies.
	for name, p := range r.plugins {
		if r.IsDisabled(name) {
			continue
		}
		for _, dep := range p.Info().Dependencies {
			if _, ok := r.plugins[dep]; ok {
				continue
			}
			reason := fmt.Sprintf("missing dependency %q", dep)
			if p.Info().Required {
				return fmt.Errorf("plugin %q: %s", name, reason)
			}
			r.disable(name, reason)
			break
		}
	}

	// Disabled modules take their dependents down with them.
	r.cascadeDisable()

	order, err := r.topoSort()
	if err != nil {
		return err
	}
	r.order = order
	return nil
}

// IsDisabled reports whether the named module was disabled by Validate or
// InitAll.
func (r *Registry) IsDisabled(name string) bool {
	_, ok := r.disabled[name]
	return ok
}

// InitAll initializes modules in dependency order. A failing optional
// module is disabled; a failing required one aborts. After a successful
// init the module's optional capabilities are applied: Validator gets
// its config checked and EventSubscriber has its subscriptions wired to
// the bus.
func (r *Registry) InitAll(ctx context.Context, depsFor func(name string) plugin.Dependencies) error {
	for _, name := range r.order {
		if r.IsDisabled(name) {
			continue
		}
		p := r.plugins[name]
		r.logger.Info("initializing plugin", zap.String("name", name))
		deps := depsFor(name)
		if err := r.initOne(ctx, p, deps); err != nil {
			if p.Info().Required {
				return fmt.Errorf("init plugin %q: %w", name, err)
			}
			r.disable(name, fmt.Sprintf("init failed: %v", err))
			r.cascadeDisable()
		}
	}
	return nil
}

func (r *Registry) initOne(ctx context.Context, p plugin.Plugin, deps plugin.Dependencies) error {
	if err := p.Init(ctx, deps); err != nil {
		return err
	}
	// Config validation happens post-init; modules read their config
	// during Init, so only then do they know what to validate.
	if v, ok := p.(plugin.Validator); ok {
		if err := v.ValidateConfig(); err != nil {
			return fmt.Errorf("config validation: %w", err)
		}
	}
	if es, ok := p.(plugin.EventSubscriber); ok {
		for _, sub := range es.Subscriptions() {
			deps.Bus.Subscribe(sub.Topic, sub.Handler)
			r.logger.Debug("plugin subscribed",
				zap.String("name", p.Info().Name),
				zap.String("topic", sub.Topic),
			)
		}
	}
	return nil
}

// StartAll starts initialized modules in dependency order.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, name := range r.order {
		if r.IsDisabled(name) {
			continue
		}
		p := r.plugins[name]
		r.logger.Info("starting plugin", zap.String("name", name))
		if err := p.Start(ctx); err != nil {
			return fmt.Errorf("start plugin %q: %w", name, err)
		}
	}
	return nil
}

// StopAll stops running modules in reverse start order. Errors are logged,
// not returned, so every module gets its chance to shut down.
func (r *Registry) StopAll(ctx context.Context) {
	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		if r.IsDisabled(name) {
			continue
		}
		p := r.plugins[name]
		r.logger.Info("stopping plugin", zap.String("name", name))
		if err := p.Stop(ctx); err != nil {
			r.logger.Error("failed to stop plugin", zap.String("name", name), zap.Error(err))
		}
	}
}

// Get returns a module by name.
func (r *Registry) Get(name string) (plugin.Plugin, bool) {
	p, ok := r.plugins[name]
	return p, ok
}

// All returns all registered modules in dependency order, including
// disabled ones.
func (r *Registry) All() []plugin.Plugin {
	result := make([]plugin.Plugin, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.plugins[name])
	}
	return result
}

// AllRoutes returns the HTTP routes of every enabled module implementing
// HTTPProvider, keyed by module name.
func (r *Registry) AllRoutes() map[string][]plugin.Route {
	routes := make(map[string][]plugin.Route)
	for _, name := range r.order {
		if r.IsDisabled(name) {
			continue
		}
		hp, ok := r.plugins[name].(plugin.HTTPProvider)
		if !ok {
			continue
		}
		if pr := hp.Routes(); len(pr) > 0 {
			routes[name] = pr
		}
	}
	return routes
}

func (r *Registry) disable(name, reason string) {
	if _, already := r.disabled[name]; already {
		return
	}
	r.disabled[name] = reason
	r.logger.Warn("plugin disabled", zap.String("name", name), zap.String("reason", reason))
}

// cascadeDisable disables modules depending on a disabled module,
// repeating until stable.
func (r *Registry) cascadeDisable() {
	for changed := true; changed; {
		changed = false
		for name, p := range r.plugins {
			if r.IsDisabled(name) {
				continue
			}
			for _, dep := range p.Info().Dependencies {
				if r.IsDisabled(dep) {
					r.disable(name, fmt.Sprintf("dependency %q disabled", dep))
					changed = true
					break
				}
			}
		}
	}
}

// topoSort orders modules so dependencies come before dependents.
// Registration order breaks ties.
func (r *Registry) topoSort() ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(r.plugins))
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle involving plugin %q", name)
		}
		state[name] = visiting
		for _, dep := range r.plugins[name].Info().Dependencies {
			if _, ok := r.plugins[dep]; !ok {
				continue // already handled by Validate
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range r.order {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
