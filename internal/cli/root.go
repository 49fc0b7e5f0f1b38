package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/veridexhq/veridex/internal/engine"
	"github.com/veridexhq/veridex/internal/logger"
	"github.com/veridexhq/veridex/internal/model"
)

var (
	cfgFile   string
	verbose   bool
	storePath string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "veridex",
	Short: "Veridex - evidence alignment & compliance risk engine",
	Long: `Veridex aligns institutional evidence documents with published
accreditation standards.

It ingests standards frameworks into queryable graphs, maps uploaded
evidence to the standards it supports, scores how trustworthy each
document is, cross-maps frameworks onto each other, predicts coverage
gaps, and validates citation hygiene.

Scores are diagnostics with transparent formulas, not compliance
verdicts.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("veridex v0.1.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.veridex/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "store path (default: veridex.db)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("store"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(home + "/.veridex")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match VERIDEX_*
	viper.SetEnvPrefix("VERIDEX")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers defaults, config file, env vars, and flags
func loadConfig() *model.Config {
	cfg := model.DefaultConfig()

	if v := viper.GetString("store.path"); v != "" {
		cfg.Store.Path = v
	}
	if v := viper.GetString("embedding.provider"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := viper.GetString("embedding.model"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := viper.GetString("llm.provider"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := viper.GetString("llm.model"); v != "" {
		cfg.LLM.Model = v
	}
	if viper.IsSet("mapping.threshold") {
		cfg.Mapping.Threshold = viper.GetFloat64("mapping.threshold")
	}
	if viper.IsSet("citation.resolve_urls") {
		cfg.Citation.ResolveURLs = viper.GetBool("citation.resolve_urls")
	}
	cfg.Output.Verbose = verbose

	// API keys come from the environment, never the config file
	cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	switch cfg.LLM.Provider {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
	if cfg.Embedding.APIKey == "" {
		// No key means no embedding capability; mapping queues artifacts
		cfg.Embedding.Provider = ""
	}
	return cfg
}

// newEngine builds an engine for one command invocation
func newEngine(cfg *model.Config) (*engine.Engine, *logger.Logger, error) {
	log, err := logger.New(cfg.Output.LogMode)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	e, err := engine.New(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return e, log, nil
}
