// daybook-mcp exposes the journal wizard as MCP tools over stdio, so an
// AI assistant can drive the same flow the HTTP API serves.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/daybookhq/daybook/internal/config"
	"github.com/daybookhq/daybook/internal/connectors"
	"github.com/daybookhq/daybook/internal/entries"
	"github.com/daybookhq/daybook/internal/logging"
	"github.com/daybookhq/daybook/internal/pipeline"
	"github.com/daybookhq/daybook/internal/transform"
	"github.com/daybookhq/daybook/internal/wizard"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// Try .env next to the executable, then the cwd. Stdio servers are
	// usually launched from an assistant's install dir, not the repo.
	envPaths := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		envPaths = append([]string{
			filepath.Join(filepath.Dir(exeDir), ".env"),
			filepath.Join(exeDir, ".env"),
		}, envPaths...)
	}
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			break
		}
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	apiKey := cfg.Backend.APIKey()
	backendFetcher := connectors.NewFetcher(cfg.Backend.BaseURL, apiKey, cfg.Connectors.CacheSize, cfg.Connectors.CacheTTL())
	fetcher := buildFetcher(backendFetcher, cfg.Connectors.ConfigPath)
	registry := connectors.NewRegistry(cfg.Backend.BaseURL, apiKey)
	pipe := pipeline.NewClient(cfg.Backend.BaseURL, apiKey, cfg.Pipeline.StageTimeout())
	transformer := transform.NewClient(cfg.Transform.BaseURL, apiKey)
	creator := entries.NewCreator(cfg.Entries.BaseURL, cfg.Entries.APIKey())

	store, err := entries.OpenStore(cfg.HistoryDBPath())
	if err != nil {
		logging.Warn("main", "history store disabled: %v", err)
		store = nil
	} else {
		defer store.Close()
	}

	deps := wizard.Deps{
		Fetcher:     fetcher,
		Pipeline:    pipe,
		Transformer: transformer,
		Creator:     creator,
		Events:      logging.NewEventRing(256),
	}
	if store != nil {
		deps.History = store
	}
	manager := wizard.NewManager(deps, cfg.Wizard.IdleExpiry())
	defer manager.Shutdown()

	t := &tools{manager: manager, registry: registry}

	s := server.NewMCPServer(
		"daybook-mcp",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(startTool(), t.handleStart)
	s.AddTool(fetchTool(), t.handleFetch)
	s.AddTool(selectTool(), t.handleSelect)
	s.AddTool(reviewTool(), t.handleReview)
	s.AddTool(correlateTool(), t.handleCorrelate)
	s.AddTool(previewTool(), t.handlePreview)
	s.AddTool(editTool(), t.handleEdit)
	s.AddTool(backTool(), t.handleBack)
	s.AddTool(createTool(), t.handleCreate)
	s.AddTool(closeTool(), t.handleClose)
	s.AddTool(integrationsTool(), t.handleIntegrations)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

// buildFetcher wraps the backend fetcher with local stdio connector
// proxies when a connectors.json is configured.
func buildFetcher(backend *connectors.Fetcher, configPath string) wizard.Fetcher {
	if configPath == "" {
		return backend
	}
	configs, err := connectors.LoadProxyConfigs(configPath)
	if err != nil {
		logging.Warn("main", "load connector config: %v", err)
		return backend
	}
	var proxies []*connectors.Proxy
	for _, pc := range configs {
		p, err := connectors.StartProxy(pc)
		if err != nil {
			logging.Warn("main", "start %s connector: %v", pc.Tool, err)
			continue
		}
		proxies = append(proxies, p)
	}
	if len(proxies) == 0 {
		return backend
	}
	return connectors.NewHub(backend, proxies)
}
