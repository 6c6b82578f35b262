package plugin

import "context"

// HTTPProvider is implemented by modules that expose REST API routes.
type HTTPProvider interface {
	Routes() []Route
}

// HealthStatus reports a module's health.
type HealthStatus struct {
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// HealthChecker is implemented by modules that report their health status.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// Subscription declares an event subscription made at init time.
type Subscription struct {
	Topic   string
	Handler EventHandler
}

// EventSubscriber is implemented by modules that declare event
// subscriptions. The registry wires them to the bus after a successful
// Init.
type EventSubscriber interface {
	Subscriptions() []Subscription
}

// Validator is implemented by modules that validate their config
// post-init. A failing check is treated like an init failure.
type Validator interface {
	ValidateConfig() error
}
