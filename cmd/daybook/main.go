// daybook runs the journal wizard HTTP API.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/daybookhq/daybook/internal/config"
	"github.com/daybookhq/daybook/internal/connectors"
	"github.com/daybookhq/daybook/internal/entries"
	"github.com/daybookhq/daybook/internal/logging"
	"github.com/daybookhq/daybook/internal/notify"
	"github.com/daybookhq/daybook/internal/pipeline"
	"github.com/daybookhq/daybook/internal/server"
	"github.com/daybookhq/daybook/internal/transform"
	"github.com/daybookhq/daybook/internal/wizard"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		logging.Info("config", "loaded .env file")
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
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
		log.Fatalf("open history store: %v", err)
	}
	defer store.Close()

	var notifier wizard.Notifier
	if cfg.Discord.Enabled {
		discord, err := notify.NewDiscordNotifier(cfg.Discord.Token(), cfg.Discord.Channel())
		if err != nil {
			logging.Warn("main", "discord disabled: %v", err)
		} else if discord != nil {
			defer discord.Close()
			notifier = discord
		}
	}

	events := logging.NewEventRing(256)
	manager := wizard.NewManager(wizard.Deps{
		Fetcher:     fetcher,
		Pipeline:    pipe,
		Transformer: transformer,
		Creator:     creator,
		History:     store,
		Notifier:    notifier,
		Events:      events,
	}, cfg.Wizard.IdleExpiry())
	defer manager.Shutdown()

	srv := server.New(server.Options{
		Manager:  manager,
		Registry: registry,
		Store:    store,
		Events:   events,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx, cfg.Server.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
	logging.Info("main", "shutdown complete")
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
