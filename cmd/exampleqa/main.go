package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/cexll/agentsdk-go/pkg/model"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/stellarlinkco/exampleqa/internal/agent"
	"github.com/stellarlinkco/exampleqa/internal/config"
	"github.com/stellarlinkco/exampleqa/internal/examples"
	"go.uber.org/zap"
)

// ModelFactory creates the completion model used by the agent (allows mocking in tests)
type ModelFactory func(ctx context.Context, cfg *config.Config) (agent.Completer, error)

// DefaultModelFactory builds an agentsdk-go model for the configured provider.
func DefaultModelFactory(ctx context.Context, cfg *config.Config) (agent.Completer, error) {
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("API key not set. Run 'exampleqa onboard' or set EXAMPLEQA_API_KEY / OPENAI_API_KEY")
	}

	var provider model.Provider
	switch cfg.ProviderType() {
	case config.ProviderAnthropic:
		provider = &model.AnthropicProvider{
			APIKey:      cfg.Provider.APIKey,
			BaseURL:     cfg.Provider.BaseURL,
			ModelName:   cfg.Agent.Model,
			MaxTokens:   cfg.Agent.MaxTokens,
			MaxRetries:  cfg.Provider.MaxRetries,
			Temperature: cfg.Agent.Temperature,
		}
	case config.ProviderOpenAI:
		provider = &model.OpenAIProvider{
			APIKey:      cfg.Provider.APIKey,
			BaseURL:     cfg.Provider.BaseURL,
			ModelName:   cfg.Agent.Model,
			MaxTokens:   cfg.Agent.MaxTokens,
			MaxRetries:  cfg.Provider.MaxRetries,
			Temperature: cfg.Agent.Temperature,
		}
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Provider.Type)
	}

	mdl, err := provider.Model(ctx)
	if err != nil {
		return nil, fmt.Errorf("create model: %w", err)
	}
	return mdl, nil
}

// AskOptions for running the ask flow with custom dependencies
type AskOptions struct {
	ModelFactory ModelFactory
	Logger       *zap.Logger
	Stdout       io.Writer
}

var rootCmd = &cobra.Command{
	Use:           "exampleqa",
	Short:         "exampleqa - ask a model about local code examples",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; credentials may already be in the environment.
		_ = godotenv.Load()

		l, err := newLogger(verboseFlag)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Attach matching files to the prompt and ask one question",
	RunE:  runAsk,
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "List the files that would be attached to the prompt",
	Args:  cobra.NoArgs,
	RunE:  runContext,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config",
	Args:  cobra.NoArgs,
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show exampleqa status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var (
	logger *zap.Logger = zap.NewNop()

	verboseFlag  bool
	patternFlag  string
	rootFlag     string
	labelFlag    string
	modelFlag    string
	providerFlag string
	dryRunFlag   bool
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging on stderr")
	for _, c := range []*cobra.Command{askCmd, contextCmd} {
		c.Flags().StringVarP(&patternFlag, "pattern", "p", "", "Glob pattern selecting example files (default from config, *.rs)")
		c.Flags().StringVar(&rootFlag, "root", "", "Directory the pattern is matched against (default: working directory)")
		c.Flags().StringVar(&labelFlag, "label", "", "Label written in front of each attached file")
	}
	askCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Completion model identifier")
	askCmd.Flags().StringVar(&providerFlag, "provider", "", "Provider type: openai or anthropic")
	askCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Print the request instead of sending it")
	rootCmd.AddCommand(askCmd, contextCmd, onboardCmd, statusCmd)
}

func main() {
	os.Exit(run(os.Stderr))
}

// run executes the root command and returns the process exit code. The
// logger is flushed before returning so os.Exit cannot drop buffered entries.
func run(stderr io.Writer) int {
	defer func() { _ = logger.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newLogger(verbose bool) (*zap.Logger, error) {
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		loggerConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	loggerConfig.OutputPaths = []string{"stderr"}
	loggerConfig.ErrorOutputPaths = []string{"stderr"}
	loggerConfig.DisableStacktrace = true
	return loggerConfig.Build()
}

// runAsk is the command handler that uses default options
func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	return runAskWithOptions(ctx, args, AskOptions{Stdout: cmd.OutOrStdout()})
}

// runAskWithOptions runs discovery, loading, assembly and the prompt with
// injectable dependencies for testing. Nothing is written to stdout unless
// the whole flow succeeds.
func runAskWithOptions(ctx context.Context, args []string, opts AskOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if modelFlag != "" {
		cfg.Agent.Model = modelFlag
	}
	if providerFlag != "" {
		cfg.Provider.Type = strings.ToLower(strings.TrimSpace(providerFlag))
	}

	log := opts.Logger
	if log == nil {
		log = logger
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		question = cfg.Examples.Question
	}

	fsys := os.DirFS(cfg.Examples.Root)
	paths, err := examples.Discover(fsys, cfg.Examples.Pattern, log)
	if err != nil {
		return fmt.Errorf("discover examples: %w", err)
	}

	// The client is built before any file is read so a bad credential fails fast.
	var mdl agent.Completer
	if !dryRunFlag {
		factory := opts.ModelFactory
		if factory == nil {
			factory = DefaultModelFactory
		}
		mdl, err = factory(ctx, cfg)
		if err != nil {
			return err
		}
	}

	builder := agent.NewBuilder(mdl).
		Preamble(cfg.Agent.Preamble).
		Logger(log)
	ag := agent.Assemble(builder, examples.Load(fsys, paths, log), cfg.Examples.Label).Build()

	if dryRunFlag {
		writeTranscript(stdout, ag.Request(question))
		return nil
	}

	answer, err := ag.Prompt(ctx, question)
	if err != nil {
		return fmt.Errorf("agent error: %w", err)
	}
	fmt.Fprintln(stdout, answer)
	return nil
}

func runContext(cmd *cobra.Command, args []string) error {
	return runContextWithOptions(AskOptions{Stdout: cmd.OutOrStdout()})
}

func runContextWithOptions(opts AskOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := opts.Logger
	if log == nil {
		log = logger
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	fsys := os.DirFS(cfg.Examples.Root)
	paths, err := examples.Discover(fsys, cfg.Examples.Pattern, log)
	if err != nil {
		return fmt.Errorf("discover examples: %w", err)
	}

	discovered, total, count := 0, 0, 0
	counted := func(yield func(string) bool) {
		for p := range paths {
			discovered++
			if !yield(p) {
				return
			}
		}
	}
	for doc := range examples.Load(fsys, counted, log) {
		count++
		total += len(doc.Content)
		fmt.Fprintf(stdout, "%s\t%s\n", doc.Path, humanize.Bytes(uint64(len(doc.Content))))
	}
	fmt.Fprintf(stdout, "%d of %d matched files attached (%s) for pattern %q in %s\n",
		count, discovered, humanize.Bytes(uint64(total)), cfg.Examples.Pattern, cfg.Examples.Root)
	return nil
}

// loadConfig reads the config and applies the flags shared by ask and context.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if patternFlag != "" {
		cfg.Examples.Pattern = patternFlag
	}
	if rootFlag != "" {
		cfg.Examples.Root = rootFlag
	}
	if labelFlag != "" {
		cfg.Examples.Label = labelFlag
	}
	return cfg, nil
}

func writeTranscript(w io.Writer, req model.Request) {
	if req.System != "" {
		fmt.Fprintf(w, "--- system ---\n%s\n", req.System)
	}
	for _, msg := range req.Messages {
		fmt.Fprintf(w, "--- %s (%s) ---\n%s\n", msg.Role, humanize.Bytes(uint64(len(msg.Content))), msg.Content)
	}
}

func runOnboard(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfgPath := config.ActivePath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "Config already exists: %s\n", cfgPath)
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s to set your API key\n", cfgPath)
	fmt.Fprintln(out, "  2. Or set EXAMPLEQA_API_KEY / OPENAI_API_KEY (a .env file works too)")
	fmt.Fprintln(out, "  3. Run 'exampleqa ask \"Which example stops a container?\"' in a directory of *.rs files")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(out, "Config: error (%v)\n", err)
		return nil
	}

	fmt.Fprintf(out, "Config: %s\n", config.ActivePath())
	fmt.Fprintf(out, "Provider: %s\n", providerDisplay(cfg.Provider.Type))
	fmt.Fprintf(out, "Model: %s\n", cfg.Agent.Model)
	fmt.Fprintf(out, "API Key: %s\n", maskKey(cfg.Provider.APIKey))
	if cfg.Provider.BaseURL != "" {
		fmt.Fprintf(out, "Base URL: %s\n", cfg.Provider.BaseURL)
	}
	fmt.Fprintf(out, "Examples: %s in %s (label %q)\n", cfg.Examples.Pattern, cfg.Examples.Root, cfg.Examples.Label)
	return nil
}

func providerDisplay(t string) string {
	if t == "" {
		return config.DefaultProvider + " (default)"
	}
	return t
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "not set"
	case len(key) > 8:
		return key[:4] + "..." + key[len(key)-4:]
	default:
		return "set"
	}
}
