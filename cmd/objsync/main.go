// Command objsync diffs, copies and resolves JSON, YAML and MessagePack
// documents.
//
//	objsync [-config objsync.yaml] diff <target> <source>
//	objsync [-config objsync.yaml] copy <source> [target]
//	objsync [-config objsync.yaml] extend <source> <target>
//	objsync [-config objsync.yaml] get [property...]
//	objsync [-config objsync.yaml] describe <document>
//
// Documents are file paths with an optional "#path" selector.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("objsync", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "configuration file")
	output := flags.String("output", "", "output format: json, yaml or msgpack")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() == 0 {
		fmt.Fprintln(stderr, "objsync: missing command (diff, copy, extend, get, describe)")
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "objsync: config: %v\n", err)
		return 1
	}
	if *output != "" {
		cfg.Output = *output
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(stderr, "objsync: %v\n", err)
			return 2
		}
	}

	inv := invocation{command: flags.Arg(0), args: flags.Args()[1:], stdout: stdout}
	app, err := newApp(cfg, inv, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "objsync: %v\n", err)
		return 2
	}
	if err := app.Err(); err != nil {
		fmt.Fprintf(stderr, "objsync: %v\n", err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}
