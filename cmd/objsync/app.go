package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	objsync "github.com/goliatone/go-objsync"
	"github.com/goliatone/go-objsync/pkg/activity"
	"github.com/goliatone/go-objsync/pkg/logging"
	"github.com/goliatone/go-objsync/pkg/source"
)

// invocation is the command line request handed to the fx graph.
type invocation struct {
	command string
	args    []string
	stdout  io.Writer
}

// engineOptions are shared by the engine and the resolver.
type engineOptions []objsync.Option

// newApp builds the fx application that runs inv. Only the dependencies the
// command asks for are constructed.
func newApp(cfg *Config, inv invocation, stderr io.Writer) (*fx.App, error) {
	run, ok := commands[inv.command]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", inv.command)
	}
	logger := logging.NewLogger(cfg.Log, stderr)

	return fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),
		fx.Supply(cfg, logger, inv),
		fx.Provide(
			newActivityEmitter,
			newEngineOptions,
			newEngine,
			newMapping,
			newResolver,
		),
		fx.Invoke(run),
	), nil
}

func newActivityEmitter(cfg *Config, logger *slog.Logger) *activity.Emitter {
	hook := activity.HookFunc(func(_ context.Context, event activity.Event) error {
		logger.Info("activity",
			slog.String("verb", event.Verb),
			slog.String("object_type", event.ObjectType),
			slog.String("object_id", event.ObjectID),
			slog.String("channel", event.Channel),
			slog.Any("paths", event.Paths),
			slog.Any("metadata", event.Metadata),
		)
		return nil
	})
	return activity.NewEmitter(activity.Hooks{hook}, cfg.Activity)
}

func newEngineOptions(cfg *Config, logger *slog.Logger, emitter *activity.Emitter) engineOptions {
	opts := engineOptions{
		objsync.WithLogger(logger),
		objsync.WithEvaluatorLogger(objsync.SlogEvaluatorLogger(logger)),
		objsync.WithSkipArray(cfg.SkipArray),
	}
	if emitter.Enabled() {
		opts = append(opts, objsync.WithActivityHooks(activity.Hooks{emitter}))
	}
	switch strings.ToLower(cfg.Evaluator) {
	case "cel":
		opts = append(opts, objsync.WithEvaluator(objsync.NewCELEvaluator()))
	case "js":
		opts = append(opts, objsync.WithEvaluator(objsync.NewJSEvaluator()))
	}
	return opts
}

func newEngine(opts engineOptions) *objsync.Engine {
	return objsync.NewEngine(opts...)
}

// newMapping loads the configured mapping document. Without one the copy
// command deep merges.
func newMapping(cfg *Config, engine *objsync.Engine) (objsync.MappingSpec, error) {
	if cfg.Mapping == "" {
		return nil, nil
	}
	data, err := os.ReadFile(cfg.Mapping)
	if err != nil {
		return nil, fmt.Errorf("reading mapping %q: %w", cfg.Mapping, err)
	}
	return engine.LoadMappingSpec(data)
}

func newResolver(cfg *Config, opts engineOptions) (*objsync.Resolver, error) {
	layers := make([]*objsync.Layer, 0, len(cfg.Layers))
	for _, lc := range cfg.Layers {
		fetcher, err := source.NewFetcher(lc.File)()
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", lc.Scope, err)
		}
		data, err := fetcher.Load(lc.Path)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", lc.Scope, err)
		}
		layers = append(layers, objsync.NewLayer(
			objsync.NewScope(lc.Scope, lc.Priority),
			data,
			objsync.WithSnapshotID(fetcher.Path()),
		))
	}
	stack, err := objsync.NewStack(layers...)
	if err != nil {
		return nil, err
	}
	if stack.Len() == 0 {
		return objsync.NewResolver(nil, opts...)
	}
	return stack.Resolver(opts...)
}
