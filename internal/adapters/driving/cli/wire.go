package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/obra/internal/adapters/driven/ai"
	"github.com/custodia-labs/obra/internal/adapters/driven/config/file"
	"github.com/custodia-labs/obra/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/obra/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/ports/driven"
	"github.com/custodia-labs/obra/internal/core/services"
	"github.com/custodia-labs/obra/internal/logger"
	"github.com/custodia-labs/obra/internal/normalisers"
	bc3normaliser "github.com/custodia-labs/obra/internal/normalisers/bc3"
	"github.com/custodia-labs/obra/internal/normalisers/csv"
	"github.com/custodia-labs/obra/internal/normalisers/docx"
	"github.com/custodia-labs/obra/internal/normalisers/markdown"
	"github.com/custodia-labs/obra/internal/normalisers/pdf"
	"github.com/custodia-labs/obra/internal/normalisers/plaintext"
	"github.com/custodia-labs/obra/internal/postprocessors"
)

// wireServices builds every adapter and service from the stored settings.
// Missing AI configuration is reported as a warning so document and
// settings commands keep working.
func wireServices(_ *cobra.Command) (func(), error) {
	dir := homeDir
	if dir == "" {
		d, err := file.DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = d
	}

	fileConfig, err := file.NewConfigStore(dir)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	var configStore driven.ConfigStore = fileConfig
	if ephemeral {
		configStore = memory.NewOverlayConfigStore(fileConfig)
	}
	settingsSvc := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	promptStore, err := file.NewPromptStore(filepath.Join(dir, "prompts"))
	if err != nil {
		return nil, fmt.Errorf("open prompts: %w", err)
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var (
		docStore driven.DocumentStore
		content  driven.ContentStore
	)
	if ephemeral {
		store, err := memory.NewStore()
		if err != nil {
			return nil, fmt.Errorf("open in-memory index: %w", err)
		}
		closers = append(closers, func() { _ = store.Close() })
		docStore, content = store, store
		logger.Debug("Using in-memory index")
	} else {
		store, err := sqlite.NewStore(filepath.Join(dir, "data"))
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
		closers = append(closers, func() {
			if err := store.Close(); err != nil {
				logger.Warn("Close index: %v", err)
			}
		})
		docStore, content = store.DocumentStore(), store.ContentStore()
		logger.Debug("Index: %s", store.Path())
	}

	pipeline, err := postprocessors.DefaultPipeline(settings.Ingest)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("build chunking pipeline: %w", err)
	}

	aiResult := ai.Init(settings, promptStore)
	closers = append(closers, aiResult.Close)
	for _, w := range aiResult.Warnings {
		logger.Warn("%s", w)
	}

	search := services.NewSearchService(content, aiResult.EmbeddingService)
	budget := services.NewBudgetService(search, aiResult.LLMService,
		settings.RAG.EnrichConcurrency, settings.RAG.RequestTimeout)
	budget.SetPromptStore(promptStore)

	SetServices(Services{
		Settings: settingsSvc,
		Document: services.NewDocumentService(docStore, content, newNormaliserRegistry(settings.Ingest),
			pipeline, aiResult.EmbeddingService, settings.Ingest),
		Search: search,
		RAG: services.NewRAGService(search, aiResult.LLMService,
			memory.NewSessionStore(settings.Session), settings.RAG.RequestTimeout),
		Budget: budget,
	})
	queryDefaults = settings.RAG

	return cleanup, nil
}

// newNormaliserRegistry registers every supported file format.
func newNormaliserRegistry(limits domain.IngestSettings) *normalisers.Registry {
	return normalisers.NewRegistry(
		plaintext.New(),
		markdown.New(),
		csv.New(),
		docx.New(),
		pdf.New(),
		bc3normaliser.New(limits.MinContentLength),
	)
}
