// Command strata researches an outline into a cited document.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/strata-cli/internal/adapters/driven/ai"
	"github.com/custodia-labs/strata-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/strata-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/strata-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driving"
	"github.com/custodia-labs/strata-cli/internal/core/services"
	"github.com/custodia-labs/strata-cli/internal/logger"
	"github.com/custodia-labs/strata-cli/internal/normalisers"
	"github.com/custodia-labs/strata-cli/internal/normalisers/markdown"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is not an error.
	_ = godotenv.Load() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	prompts, err := file.NewPromptStore("")
	if err != nil {
		return fmt.Errorf("opening prompts: %w", err)
	}
	store, err := sqlite.NewStore("")
	if err != nil {
		return fmt.Errorf("opening run history: %w", err)
	}
	defer store.Close()

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	historyService := services.NewHistoryService(store.RunStore())

	codec := markdown.New()
	exporters := normalisers.DefaultRegistry()

	exports := services.NewResearchService(nil, nil, codec, prompts, nil)
	exports.SetExporters(exporters)

	// Providers are created per command; settings are read once and shared
	// by reference with the service.
	researchFactory := func() (driving.ResearchService, func(), error) {
		settings, err := settingsService.Get()
		if err != nil {
			return nil, nil, fmt.Errorf("loading settings: %w", err)
		}
		providers, err := ai.Initialise(settings, prompts)
		if err != nil {
			return nil, nil, err
		}

		svc := services.NewResearchService(providers.LLMService, providers.ResearchProvider, codec, prompts, settings)
		svc.SetRunStore(store.RunStore())
		svc.SetExporters(exporters)
		return svc, providers.Close, nil
	}

	var watcher cli.Watcher
	if w, err := file.NewPromptWatcher(prompts, prompts.Dir()); err != nil {
		logger.Warn("Prompt reloading unavailable: %v", err)
	} else {
		defer w.Stop() //nolint:errcheck
		watcher = w
	}

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Settings:      settingsService,
		History:       historyService,
		Research:      researchFactory,
		Exporter:      exports,
		PromptWatcher: watcher,
	})

	return cli.Execute(ctx)
}
