package event

import (
	"context"
	"log/slog"
)

// Policy declares how a handler's failure affects the enclosing request.
type Policy int

const (
	// PolicyFatal aborts the whole request when the handler fails. Used for
	// document state, which is authoritative and must not silently drop.
	PolicyFatal Policy = iota

	// PolicyBestEffort logs the failure and lets the request succeed. Used
	// for secondary tracking tables that may not exist in every deployment.
	PolicyBestEffort
)

// HandlerFunc reconciles a single event against persistent storage.
type HandlerFunc func(ctx context.Context, env *Envelope) error

type route struct {
	fn     HandlerFunc
	policy Policy
}

// Outcome reports what dispatching an envelope did.
type Outcome struct {
	// Handled is false for unrecognized event types, which are acknowledged
	// but never marked processed.
	Handled bool

	// SoftError carries the message of a best-effort handler failure, for
	// the audit record. Empty on clean success.
	SoftError string
}

// Router dispatches envelopes to reconciliation handlers by event type.
//
// Unrecognized event types are not an error: they are logged and the
// request still succeeds, because the sender should not retry events this
// receiver intentionally ignores.
type Router struct {
	logger *slog.Logger
	routes map[string]route
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		logger: logger,
		routes: make(map[string]route),
	}
}

// Handle registers a handler with its failure policy for an event type.
func (r *Router) Handle(eventType string, policy Policy, fn HandlerFunc) {
	r.routes[eventType] = route{fn: fn, policy: policy}
}

// Dispatch routes the envelope to its handler. The returned error is
// non-nil only for fatal handler failures; best-effort failures surface in
// Outcome.SoftError.
func (r *Router) Dispatch(ctx context.Context, env *Envelope) (Outcome, error) {
	if env.EventType == TypePing {
		r.logger.Debug("Ping event acknowledged",
			slog.String("delivery_id", env.DeliveryID),
		)
		return Outcome{Handled: true}, nil
	}

	rt, ok := r.routes[env.EventType]
	if !ok {
		r.logger.Info("Ignoring unrecognized event type",
			slog.String("event_type", env.EventType),
			slog.String("delivery_id", env.DeliveryID),
		)
		return Outcome{Handled: false}, nil
	}

	if err := rt.fn(ctx, env); err != nil {
		if rt.policy == PolicyFatal {
			return Outcome{Handled: true}, err
		}

		r.logger.Warn("Best-effort handler failed",
			slog.String("event_type", env.EventType),
			slog.String("delivery_id", env.DeliveryID),
			slog.String("error", err.Error()),
		)
		return Outcome{Handled: true, SoftError: err.Error()}, nil
	}

	return Outcome{Handled: true}, nil
}
