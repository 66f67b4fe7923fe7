package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/obra/internal/core/domain"
	"github.com/custodia-labs/obra/internal/core/services"
)

var errNoSettingsService = errors.New("settings service not configured")

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure AI providers, retrieval defaults and ingestion limits.

Settings are stored in config.toml under the obra home directory. Any key can
be overridden with an OBRA_* environment variable (rag.min_score becomes
OBRA_RAG_MIN_SCORE); API keys also fall back to GEMINI_API_KEY and
OPENAI_API_KEY.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change one setting",
	Long: `Stores a single setting. Available keys:

  ` + strings.Join(services.SettingKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Choose the provider and model that embed documents and queries, then check it answers.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if settingsService == nil {
			return errNoSettingsService
		}
		return configureProvider(cmd, embeddingPrompt())
	},
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Choose the language model that writes answers and estimates prices, then check it answers.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if settingsService == nil {
			return errNoSettingsService
		}
		return configureProvider(cmd, llmPrompt())
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsEmbeddingCmd, settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

// field is one "name: value" line of settings show.
type field struct {
	name, value string
}

func printSection(cmd *cobra.Command, title string, fields ...field) {
	cmd.Printf("[%s]\n", title)
	for _, f := range fields {
		if f.value != "" {
			cmd.Printf("  %s: %s\n", f.name, f.value)
		}
	}
	cmd.Println()
}

func apiKeyField(provider domain.AIProvider, key string) field {
	switch {
	case !provider.RequiresAPIKey():
		return field{}
	case key == "":
		return field{"API Key", "(not set)"}
	}
	return field{"API Key", maskAPIKey(key)}
}

func statusField(configured bool) field {
	if configured {
		return field{"Status", "configured"}
	}
	return field{"Status", "not configured"}
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettingsService
	}
	s, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	dims := ""
	if s.Embedding.Dimensions > 0 {
		dims = strconv.Itoa(s.Embedding.Dimensions)
	}
	printSection(cmd, "Embedding",
		field{"Provider", s.Embedding.Provider.Description()},
		field{"Model", s.Embedding.Model},
		field{"Base URL", s.Embedding.BaseURL},
		field{"Dimensions", dims},
		apiKeyField(s.Embedding.Provider, s.Embedding.APIKey),
		statusField(s.Embedding.IsConfigured()),
	)
	printSection(cmd, "LLM",
		field{"Provider", s.LLM.Provider.Description()},
		field{"Model", s.LLM.Model},
		field{"Base URL", s.LLM.BaseURL},
		apiKeyField(s.LLM.Provider, s.LLM.APIKey),
		field{"Temperature", fmt.Sprintf("%.2f", s.LLM.Temperature)},
		field{"Max tokens", strconv.Itoa(s.LLM.MaxTokens)},
		field{"Requests per minute", strconv.Itoa(s.LLM.RequestsPerMinute)},
		statusField(s.LLM.IsConfigured()),
	)
	printSection(cmd, "RAG",
		field{"Max results", strconv.Itoa(s.RAG.MaxResults)},
		field{"Min score", fmt.Sprintf("%.2f", s.RAG.MinScore)},
		field{"Request timeout", s.RAG.RequestTimeout.String()},
		field{"Enrich concurrency", strconv.Itoa(s.RAG.EnrichConcurrency)},
	)
	printSection(cmd, "Ingest",
		field{"Chunk size", fmt.Sprintf("%d (overlap %d)", s.Ingest.ChunkSize, s.Ingest.ChunkOverlap)},
		field{"Max chunks per document", strconv.Itoa(s.Ingest.MaxChunks)},
		field{"Embedding batch", strconv.Itoa(s.Ingest.EmbedBatchSize)},
		field{"Max file size", fmt.Sprintf("%d MB", s.Ingest.MaxFileSizeMB)},
		field{"BC3 min content length", strconv.Itoa(s.Ingest.MinContentLength)},
	)
	printSection(cmd, "Session",
		field{"Messages kept", fmt.Sprintf("%d (%d sent to the model)", s.Session.MaxMessages, s.Session.PromptMessages)},
		field{"TTL", s.Session.TTL.String()},
		field{"Max sessions", strconv.Itoa(s.Session.MaxSessions)},
	)

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'obra settings embedding', 'obra settings llm' or 'obra settings set' to fix.")
		return nil
	}
	cmd.Println("Configuration is valid.")
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNoSettingsService
	}

	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	if strings.HasSuffix(key, ".api_key") {
		value = maskAPIKey(value)
	}
	cmd.Printf("%s = %s\n", key, value)
	return nil
}

// providerPrompt drives the interactive provider setup for one kind of model.
type providerPrompt struct {
	kind      string
	providers []domain.AIProvider
	models    map[domain.AIProvider]string
	save      func(provider domain.AIProvider, model, apiKey string) error
	validate  func() error
}

func embeddingPrompt() providerPrompt {
	return providerPrompt{
		kind:      "Embedding",
		providers: domain.AllEmbeddingProviders(),
		models:    domain.DefaultEmbeddingModels(),
		save:      settingsService.SetEmbeddingProvider,
		validate:  settingsService.ValidateEmbeddingConfig,
	}
}

func llmPrompt() providerPrompt {
	return providerPrompt{
		kind:      "LLM",
		providers: domain.AllLLMProviders(),
		models:    domain.DefaultLLMModels(),
		save:      settingsService.SetLLMProvider,
		validate:  settingsService.ValidateLLMConfig,
	}
}

// configureProvider asks for provider, model and key, stores them and pings
// the provider. A failed ping leaves the new values stored.
func configureProvider(cmd *cobra.Command, p providerPrompt) error {
	in := bufio.NewReader(cmd.InOrStdin())

	cmd.Printf("Select %s Provider\n", p.kind)
	for i, provider := range p.providers {
		cmd.Printf("  %d. %s\n", i+1, provider.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	provider := p.providers[parseChoice(readLine(in), len(p.providers), 1)-1]

	model := p.models[provider]
	cmd.Printf("Enter model name [%s]: ", model)
	if typed := readLine(in); typed != "" {
		model = typed
	}

	var apiKey string
	if provider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readSecret(cmd.InOrStdin(), in)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := p.save(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure %s provider: %w", p.kind, err)
	}

	cmd.Print("Validating configuration... ")
	if err := p.validate(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("%s configuration validation failed: %w", p.kind, err)
	}
	cmd.Println("OK")
	cmd.Printf("%s provider configured: %s (%s)\n\n", p.kind, provider.Description(), model)
	return nil
}

func readLine(in *bufio.Reader) string {
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

// readSecret reads without echo when stdin is a terminal.
func readSecret(stdin io.Reader, in *bufio.Reader) string {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if secret, err := term.ReadPassword(int(f.Fd())); err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	return readLine(in)
}

// parseChoice returns the 1-based choice in input, or def when input is not
// a number in [1, maxVal].
func parseChoice(input string, maxVal, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > maxVal {
		return def
	}
	return n
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
