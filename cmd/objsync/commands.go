package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	objsync "github.com/goliatone/go-objsync"
	"github.com/goliatone/go-objsync/pkg/source"
)

var errUsage = errors.New("usage")

// commands maps a command name to its fx invoke function.
var commands = map[string]any{
	"diff":     runDiff,
	"copy":     runCopy,
	"extend":   runExtend,
	"get":      runGet,
	"describe": runDescribe,
}

type change struct {
	Path string `json:"path" yaml:"path"`
	Old  any    `json:"old" yaml:"old"`
	New  any    `json:"new" yaml:"new"`
}

type diffReport struct {
	ID      string   `json:"id" yaml:"id"`
	Changes []change `json:"changes" yaml:"changes"`
	Result  any      `json:"result" yaml:"result"`
}

// runDiff merges the second document into the first and reports changes.
func runDiff(inv invocation, cfg *Config, engine *objsync.Engine) error {
	if len(inv.args) != 2 {
		return fmt.Errorf("%w: objsync diff <target> <source>", errUsage)
	}
	target, err := loadDocument(inv.args[0])
	if err != nil {
		return err
	}
	src, err := loadDocument(inv.args[1])
	if err != nil {
		return err
	}
	merged, changes := engine.DiffMergeContext(context.Background(), target, src)
	report := diffReport{ID: changes.ID(), Changes: []change{}, Result: merged}
	changes.ForEach(func(path string, newValue, oldValue any) {
		report.Changes = append(report.Changes, change{Path: path, Old: oldValue, New: newValue})
	})
	return write(inv, cfg, report)
}

// runCopy copies the source document into an optional target document with
// the configured mapping.
func runCopy(inv invocation, cfg *Config, engine *objsync.Engine, spec objsync.MappingSpec) error {
	if len(inv.args) < 1 || len(inv.args) > 2 {
		return fmt.Errorf("%w: objsync copy <source> [target]", errUsage)
	}
	src, err := loadDocument(inv.args[0])
	if err != nil {
		return err
	}
	var target any
	if len(inv.args) == 2 {
		if target, err = loadDocument(inv.args[1]); err != nil {
			return err
		}
	}
	return write(inv, cfg, engine.CopyToContext(context.Background(), target, src, spec))
}

// runExtend fills the positions the target document defines from source.
func runExtend(inv invocation, cfg *Config, engine *objsync.Engine) error {
	if len(inv.args) != 2 {
		return fmt.Errorf("%w: objsync extend <source> <target>", errUsage)
	}
	src, err := loadDocument(inv.args[0])
	if err != nil {
		return err
	}
	target, err := loadDocument(inv.args[1])
	if err != nil {
		return err
	}
	return write(inv, cfg, engine.ExtendsTo(target, src))
}

type propertyReport struct {
	Value any           `json:"value" yaml:"value"`
	Found bool          `json:"found" yaml:"found"`
	Scope string        `json:"scope,omitempty" yaml:"scope,omitempty"`
	Trace objsync.Trace `json:"trace" yaml:"trace"`
}

// runGet resolves properties across the configured layers. Without
// arguments it prints the merged snapshot.
func runGet(inv invocation, cfg *Config, resolver *objsync.Resolver) error {
	if len(inv.args) == 0 {
		return write(inv, cfg, resolver.Snapshot())
	}
	out := make(map[string]propertyReport, len(inv.args))
	for _, property := range inv.args {
		value, found := resolver.Lookup(property)
		report := propertyReport{Value: value, Found: found, Trace: resolver.Trace(property)}
		if winner, ok := report.Trace.Effective(); ok {
			report.Scope = winner.Scope.Name
		}
		out[property] = report
	}
	return write(inv, cfg, out)
}

// runDescribe lists the leaf paths of a document.
func runDescribe(inv invocation, cfg *Config) error {
	if len(inv.args) != 1 {
		return fmt.Errorf("%w: objsync describe <document>", errUsage)
	}
	doc, err := loadDocument(inv.args[0])
	if err != nil {
		return err
	}
	return write(inv, cfg, objsync.Describe(doc))
}

// loadDocument reads "file[#path]".
func loadDocument(arg string) (any, error) {
	file, path, _ := strings.Cut(arg, "#")
	fetcher, err := source.NewFetcher(file)()
	if err != nil {
		return nil, err
	}
	return fetcher.Load(path)
}

func write(inv invocation, cfg *Config, value any) error {
	format, err := source.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}
	data, err := source.Encode(value, format)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	if format == source.FormatJSON {
		data = append(data, '\n')
	}
	_, err = inv.stdout.Write(data)
	return err
}
