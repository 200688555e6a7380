package activity

import (
	"context"
	"strings"
)

// Config controls emission defaults loaded from the CLI configuration.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Channel string `yaml:"channel"`
	// Verbs restricts emission to the listed verbs; empty emits all.
	Verbs []string `yaml:"verbs"`
}

// Emitter fans out events to hooks while applying defaults. It is itself an
// ActivityHook, so it can be handed to the engine as a single hook.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
}

var _ ActivityHook = (*Emitter)(nil)

// NewEmitter constructs an emitter from hooks and configuration.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = "objsync"
	}
	kept := make(Hooks, 0, len(hooks))
	for _, hook := range hooks {
		if hook = OnlyVerbs(hook, cfg.Verbs...); hook != nil {
			kept = append(kept, hook)
		}
	}
	return &Emitter{
		hooks:   kept,
		enabled: cfg.Enabled && len(kept) > 0,
		channel: channel,
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Emit forwards the event to all hooks, applying the default channel when
// the event has none.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}

// Notify is Emit.
func (e *Emitter) Notify(ctx context.Context, event Event) error {
	return e.Emit(ctx, event)
}
