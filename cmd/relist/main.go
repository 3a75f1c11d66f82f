// Copyright 2025 The Relist Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the relist server and browser application.

Note: This is a BETA release. APIs and functionality may rapidly change.

Relist keeps a reactive search-and-listing state machine over a data
source: debounced queries, named filters, sorting, page loading and
selection, with every change pushed to whoever is watching. It can run
as a MessagePack IPC server for integration with editors, as an HTTP
and WebSocket server for browsers, or as a terminal browser and REPL
for testing and debugging.

The same controller drives every mode. Local collections are matched
in-process with optional fuzzy ranking; remote sources (SQLite tables,
word lists, watched files) are paged through a loader with stale
responses discarded, so the visible list always reflects the latest
request.

# Usage

Start the IPC server with default settings:

	relist serve

Serve HTTP and WebSocket clients on the configured address:

	relist web

Browse interactively in the terminal:

	relist demo

Run the line-based REPL for testing and debugging:

	relist repl

Write the default config file and exit:

	relist init

# Configuration

Runtime configuration is managed through a TOML file with search,
server and data source sections:

	[search]
	debounce_ms = 300
	page_size = 20
	fuzzy = true
	fuzzy_threshold = 0.3

	[server]
	addr = ":8080"
	request_log = true

	[data]
	kind = "static"

The config file is automatically created with commented defaults if it
doesn't exist. A partially invalid file is salvaged section by section
rather than rejected.

# IPC Protocol

The server communicates via MessagePack over stdin/stdout. Every
request settles before its response is written, so responses always
carry the final state for that operation.

Send a search request:

	{"id": "req_001", "op": "search", "q": "ban"}

Receive the visible state with timing information:

	{"id": "req_001", "status": "ready", "items": ["Banana"], "c": 1, "more": false, "sel": 0, "t": 145}

Filters, sorting and selection are addressed by name and value:

	{"id": "req_002", "op": "filter", "key": "len", "kind": "minlen", "value": "5"}
	{"id": "req_003", "op": "sort", "order": "desc"}
	{"id": "req_004", "op": "select", "value": "Banana"}

# Web Mode

Web mode serves the same state over HTTP. GET /api/search runs a query,
GET /api/state snapshots without mutating, and /events streams every
state change over a WebSocket, starting with a snapshot so clients can
render immediately.

# Data Sources

The data section picks where items come from. "static" serves a small
built-in collection and matches locally, which is the quickest way to
try the fuzzy matcher. "sqlite" pages a table through LIKE queries,
"words" serves a ranked word list through a prefix trie, and "file"
serves the lines of a text file and reloads them when the file changes.

# Command Line Flags

The following global flags control application behavior:

	--config string
	    Configuration file path (default resolved per-OS)
	--debug, -d
	    Enable debug mode with detailed logging

Subcommands may add their own flags; relist web accepts --addr to
override the configured listen address.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	inputcli "github.com/bastiangx/relist/internal/cli"
	"github.com/bastiangx/relist/internal/logger"
	"github.com/bastiangx/relist/internal/tui"
	"github.com/bastiangx/relist/pkg/config"
	"github.com/bastiangx/relist/pkg/listing"
	"github.com/bastiangx/relist/pkg/server"
	"github.com/bastiangx/relist/pkg/source"
)

const (
	Version = "0.1.0-beta"
	AppName = "relist"
	gh      = "https://github.com/bastiangx/relist"
)

// sigHandler is a simple handler for OS signals to exit normally.
func sigHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		os.Exit(0)
	}()
}

// main wires the command tree. Subcommands build their own controller
// and mode; main() only manages the flow.
func main() {
	root := &cli.Command{
		Name:  AppName,
		Usage: "Reactive search and listing over local and remote sources",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			webCommand(),
			demoCommand(),
			replCommand(),
			initCommand(),
			versionCommand(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

// setupLogging mirrors the debug flag onto the global logger.
func setupLogging(debug bool) {
	if debug {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}
}

// loadConfig resolves and validates the active configuration.
func loadConfig(c *cli.Command) (*config.Config, error) {
	cfg, path, err := config.LoadConfigWithPriority(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if path != "" {
		log.Debugf("Using config file: (%s)", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildController assembles a controller for the configured data source.
// The returned cleanup closes whatever the source holds open.
func buildController(cfg *config.Config) (*listing.Controller[string], func(), error) {
	base := listing.Config[string]{
		Debounce:       time.Duration(cfg.Search.DebounceMs) * time.Millisecond,
		CaseSensitive:  cfg.Search.CaseSensitive,
		MinQueryLength: cfg.Search.MinQueryLength,
		PageSize:       cfg.Search.PageSize,
		CacheSize:      cfg.Search.CacheSize,
		Fuzzy:          cfg.Search.Fuzzy,
		FuzzyThreshold: cfg.Search.FuzzyThreshold,
		Logger:         logger.New("listing"),
	}
	cleanup := func() {}

	switch cfg.Data.Kind {
	case config.DataKindStatic:
		base.SearchFields = func(item string) []string { return []string{item} }
		ctrl, err := listing.New(base)
		if err != nil {
			return nil, nil, err
		}
		ctrl.SetItems(defaultItems())
		return ctrl, cleanup, nil

	case config.DataKindSQLite:
		db, err := source.OpenSQLite(source.SQLiteConfig{
			Path:   cfg.Data.Path,
			Table:  cfg.Data.Table,
			Column: cfg.Data.Columns[0],
			Search: cfg.Data.Columns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite source: %w", err)
		}
		base.Loader = db.Load
		ctrl, err := listing.New(base)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return ctrl, func() { _ = db.Close() }, nil

	case config.DataKindWords:
		index, err := source.LoadWordIndex(cfg.Data.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("loading word index: %w", err)
		}
		base.Loader = index.Load
		ctrl, err := listing.New(base)
		if err != nil {
			return nil, nil, err
		}
		return ctrl, cleanup, nil

	case config.DataKindFile:
		lines, err := source.OpenFile(cfg.Data.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening file source: %w", err)
		}
		base.Loader = lines.Load
		ctrl, err := listing.New(base)
		if err != nil {
			_ = lines.Close()
			return nil, nil, err
		}
		lines.OnReload(func() { ctrl.Refresh() })
		return ctrl, func() { _ = lines.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown data kind %q", cfg.Data.Kind)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the MessagePack IPC server on stdin/stdout",
		Action: func(ctx context.Context, c *cli.Command) error {
			sigHandler()
			setupLogging(c.Bool("debug"))

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctrl, cleanup, err := buildController(cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			defer ctrl.Dispose()

			showStartupInfo(cfg.Data.Kind)

			srv := server.NewServer(ctrl)
			return srv.Start()
		},
	}
}

func webCommand() *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Start the HTTP and WebSocket server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides the configured one",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			setupLogging(c.Bool("debug"))

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctrl, cleanup, err := buildController(cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			defer ctrl.Dispose()

			addr := cfg.Server.Addr
			if override := c.String("addr"); override != "" {
				addr = override
			}

			web := server.NewWebServer(ctrl, addr, cfg.Server.RequestLog)

			errCh := make(chan error, 1)
			go func() {
				log.Infof("Listening on %s", addr)
				log.Info("  GET /api/search - run a query")
				log.Info("  GET /api/state - snapshot without mutating")
				log.Info("  GET /events - WebSocket state stream")
				log.Info("  GET /healthz - health check")
				errCh <- web.Start()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-sigCh:
			}

			log.Info("Shutting down web server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return web.Shutdown(shutdownCtx)
		},
	}
}

func demoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "Browse the configured source in the terminal",
		Action: func(ctx context.Context, c *cli.Command) error {
			setupLogging(c.Bool("debug"))

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctrl, cleanup, err := buildController(cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			defer ctrl.Dispose()

			paged := cfg.Data.Kind != config.DataKindStatic
			return tui.Run(ctrl, paged)
		},
	}
}

func replCommand() *cli.Command {
	return &cli.Command{
		Name:  "repl",
		Usage: "Run the line REPL -- useful for testing and debugging",
		Action: func(ctx context.Context, c *cli.Command) error {
			sigHandler()
			setupLogging(c.Bool("debug"))
			log.SetReportTimestamp(false)

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctrl, cleanup, err := buildController(cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			defer ctrl.Dispose()

			paged := cfg.Data.Kind != config.DataKindStatic
			handler := inputcli.NewInputHandler(ctrl, cfg.Search.MinQueryLength, paged)
			return handler.Start()
		},
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write the default config file",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing config file",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			setupLogging(c.Bool("debug"))

			path, err := config.GetDefaultConfigPath()
			if err != nil {
				return fmt.Errorf("resolving config path: %w", err)
			}

			if c.Bool("force") {
				if err := config.RebuildConfigFile(); err != nil {
					return fmt.Errorf("rebuilding config: %w", err)
				}
				fmt.Printf("Wrote default config to %s\n", path)
				return nil
			}

			if _, err := os.Stat(path); err == nil {
				fmt.Printf("Config already exists at %s (use --force to overwrite)\n", path)
				return nil
			}
			if _, err := config.InitConfig(path); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Printf("Wrote default config to %s\n", path)
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(ctx context.Context, c *cli.Command) error {
			printVersion()
			return nil
		},
	}
}

func printVersion() {
	vlog := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()

	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})

	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})

	vlog.SetStyles(styles)

	vlog.Print("")
	vlog.Print("[ Relist ] Reactive search over lists, served fast!")
	vlog.Print("", "version", Version)
	vlog.Print("")
	vlog.Print("use -h or --help to see available options")
	vlog.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the init process.
func showStartupInfo(dataKind string) {
	pid := os.Getpid()
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	println("===========")
	println("  Relist   ")
	println("===========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", pid)
	log.Info("init: OK")
	log.Infof("data kind: ( %s )", dataKind)
	log.Info("status: ready")
	println("===========")
	println("Press Ctrl+C to exit")

	log.SetLevel(currentLevel)
}

// defaultItems is the built-in collection served by the static kind.
func defaultItems() []string {
	return []string{
		"Apple", "Apricot", "Avocado", "Banana", "Blackberry",
		"Blueberry", "Cherry", "Clementine", "Coconut", "Cranberry",
		"Date", "Dragonfruit", "Elderberry", "Fig", "Gooseberry",
		"Grape", "Grapefruit", "Guava", "Kiwi", "Kumquat",
		"Lemon", "Lime", "Lychee", "Mango", "Melon",
		"Nectarine", "Orange", "Papaya", "Passionfruit", "Peach",
		"Pear", "Persimmon", "Pineapple", "Plum", "Pomegranate",
		"Quince", "Raspberry", "Strawberry", "Tangerine", "Watermelon",
	}
}
