package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/docchat/internal/metrics"
	"github.com/raphaelgruber/docchat/internal/models"
)

// Registry maps tool names to tools.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry registers ts. Names must be unique.
func NewRegistry(ts ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		if t.Name == "" || t.Run == nil {
			return nil, fmt.Errorf("tool %q is incomplete", t.Name)
		}
		if _, dup := r.tools[t.Name]; dup {
			return nil, fmt.Errorf("tool %q registered twice", t.Name)
		}
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Specs returns the model-facing schemas of the named tools. Unknown names are skipped.
func (r *Registry) Specs(names ...string) []models.ToolSpec {
	specs := make([]models.ToolSpec, 0, len(names))
	for _, n := range names {
		if t, ok := r.tools[n]; ok {
			specs = append(specs, t.Spec())
		}
	}
	return specs
}

// Dispatcher validates and executes tool calls.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	metrics  *metrics.Collector
}

// NewDispatcher creates a Dispatcher over registry.
func NewDispatcher(registry *Registry, logger *slog.Logger, mc *metrics.Collector) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger, metrics: mc}
}

// Registry returns the dispatcher's registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs call and wraps its output as a ToolResult message. Tool
// failures are returned wrapped with the tool name and are not retried here.
func (d *Dispatcher) Dispatch(ctx context.Context, call models.ToolCall) (msg models.Message, err error) {
	t, ok := d.registry.Lookup(call.Name)
	if !ok {
		return models.Message{}, fmt.Errorf("%w: %q", ErrUnknownTool, call.Name)
	}
	if call.Args == nil && call.Raw != "" {
		return models.Message{}, fmt.Errorf("%w: %s: arguments are not a JSON object: %.80q", ErrInvalidArguments, call.Name, call.Raw)
	}
	args := Args(call.Args)
	if args == nil {
		args = Args{}
	}
	if err := t.Validate(args); err != nil {
		return models.Message{}, err
	}

	defer d.metrics.Track(metrics.OpToolDispatch)(&err)
	start := time.Now()
	res, err := t.Run(ctx, args)
	if err != nil {
		d.logger.Warn("tool failed", "tool", call.Name, "call_id", call.ID, "error", err)
		return models.Message{}, fmt.Errorf("tool %s: %w", call.Name, err)
	}
	d.logger.Debug("tool completed", "tool", call.Name, "call_id", call.ID,
		"docs", len(res.Docs), "duration_ms", time.Since(start).Milliseconds())
	return models.ToolResultMessage(call.Name, call.ID, res.Text, res.Docs), nil
}
