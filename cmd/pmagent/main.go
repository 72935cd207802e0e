// Package main is the pmagent CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/pmagent/internal/cli"
	"github.com/hyperjump/pmagent/internal/config"
	"github.com/hyperjump/pmagent/internal/models"
	"github.com/hyperjump/pmagent/internal/retrieval"
	"github.com/hyperjump/pmagent/internal/server"
	"github.com/hyperjump/pmagent/internal/sources"
	"github.com/hyperjump/pmagent/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/pmagent/config.yaml"
	defaultServerURL  = "http://localhost:8000"
)

// loadConfig loads config from path. When path is the default and config.yaml exists in the
// current directory, that file is used instead so the CLI works from a project checkout.
// A missing default config yields the built-in defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "context":
		runContext(os.Args[2:])
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("pmagent version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolvedConfigPath), zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srcCtx, srcCancel := context.WithCancel(context.Background())
	defer srcCancel()
	opts := []server.Option{
		server.WithMetrics(components.Metrics),
		server.WithFeedback(components.Feedback),
	}
	src := cfg.Context.Sources
	if src.Watch && len(src.Directories) > 0 {
		watch := sources.WatchLoader(srcCtx, components.Loader, src.Directories)
		if err := watch.Start(srcCtx); err != nil {
			logger.Fatal("Failed to start source watcher", zap.Error(err))
		}
		go watch.SyncExistingFiles()
		opts = append(opts, server.WithWatch(watch))
	} else {
		go loadSources(srcCtx, components.Loader, src.Directories, logger)
	}

	srv := server.NewServer(components.Store, components.Retriever, components.Agents, cfg, logger, opts...)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	srcCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
	components.SaveSnapshot()
}

// loadSources loads every configured source directory once.
func loadSources(ctx context.Context, loader *sources.Loader, dirs []string, logger *zap.Logger) {
	for _, dir := range dirs {
		files, paragraphs, err := loader.LoadDirectory(ctx, dir)
		if err != nil {
			logger.Warn("load context sources failed", zap.String("dir", dir), zap.Error(err))
			continue
		}
		logger.Info("loaded context sources", zap.String("dir", dir), zap.Int("files", files), zap.Int("paragraphs", paragraphs))
	}
}

// argsReorder moves flags given after positional arguments to the front so that
// "pmagent context query SSO --k 3" parses the same as "pmagent context query --k 3 SSO".
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// nonBlank drops blank arguments and trims the rest.
func nonBlank(args []string) []string {
	var out []string
	for _, a := range args {
		if s := strings.TrimSpace(a); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func runContext(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: pmagent context <add|load|query> [flags] <args>")
		os.Exit(1)
	}
	switch args[0] {
	case "add":
		runContextAdd(args[1:])
	case "load":
		runContextLoad(args[1:])
	case "query":
		runContextQuery(args[1:])
	default:
		fmt.Printf("Unknown context command: %s\n", args[0])
		os.Exit(1)
	}
}

func runContextAdd(args []string) {
	fs := flag.NewFlagSet("context add", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = write to local storage)")
	_ = fs.Parse(argsReorder(args))

	texts := nonBlank(fs.Args())
	if len(texts) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: pmagent context add [flags] <text> [text...]")
		os.Exit(1)
	}
	if *serverURL != "" {
		var resp struct {
			Count int `json:"count"`
		}
		if err := postJSON(*serverURL+"/api/v1/context", texts, &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Add context failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added %d text(s)\n", resp.Count)
		return
	}
	withLocalComponents(*configPath, func(c *Components) error {
		if err := c.Store.Ingest(context.Background(), texts); err != nil {
			return err
		}
		fmt.Printf("Added %d text(s); collection now holds %d\n", len(texts), c.Store.Len())
		return nil
	})
}

func runContextLoad(args []string) {
	fs := flag.NewFlagSet("context load", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(argsReorder(args))
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pmagent context load [flags] <file-or-dir> [...]")
		os.Exit(1)
	}
	withLocalComponents(*configPath, func(c *Components) error {
		total := 0
		for _, path := range fs.Args() {
			n, err := c.Loader.LoadPath(context.Background(), path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			total += n
		}
		fmt.Printf("Loaded %d paragraph(s); collection now holds %d\n", total, c.Store.Len())
		return nil
	})
}

func runContextQuery(args []string) {
	fs := flag.NewFlagSet("context query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = query local storage)")
	k := fs.Int("k", 0, "results per item (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	items := nonBlank(fs.Args())
	if len(items) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: pmagent context query [flags] <item> [item...]")
		os.Exit(1)
	}

	result := &cli.QueryResult{Items: items}
	if *serverURL != "" {
		var resp models.RetrieveResponse
		if err := postJSON(*serverURL+"/api/v1/context/retrieve", models.NewRetrieveRequest(items, *k), &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		result.Context = resp.Context
	} else {
		withLocalComponents(*configPath, func(c *Components) error {
			r := c.Retriever
			if *k > 0 {
				r = retrieval.NewFromStore(c.Store, retrieval.WithTopK(*k))
			}
			blob, err := r.RetrieveContext(context.Background(), items)
			result.Context = blob
			return err
		})
	}
	if err := cli.WriteQueryResult(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// withLocalComponents opens local storage, runs fn, and saves the vector snapshot.
func withLocalComponents(configPath string, fn func(*Components) error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	runErr := fn(components)
	components.SaveSnapshot()
	components.Close()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read local storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status statusResponse
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/v1/status", &status); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		withLocalComponents(*configPath, func(c *Components) error {
			status = localStatus(c)
			return nil
		})
	}

	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	writeStatusText(os.Stdout, &status)
}

func printUsage() {
	fmt.Println(`pmagent - AI product manager agent with retrieval-augmented context

Usage:
  pmagent server [flags]                      Start the HTTP server
  pmagent context add [flags] <text...>       Add project context texts
  pmagent context load [flags] <path...>      Load context from files or directories
  pmagent context query [flags] <item...>     Retrieve context for items
  pmagent status [flags]                      Show collection and storage status
  pmagent version                             Show version
  pmagent help                                Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/pmagent/config.yaml)
  --debug            Enable debug logging

Context Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8000). Use --server "" to work on local storage.
  --k int            Results per item for query (default from config: 2)
  --output string    Output format for query: text or json (default: text)

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8000). Use --server "" for direct storage.
  --output string    Output format: text or json (default: text)

Examples:
  pmagent server
  pmagent context add "Add SSO login" "Improve onboarding flow"
  pmagent context load ./docs
  pmagent context query SSO --k 3
  pmagent context query --output json "Dark mode"
  pmagent status --server ""`)
}
