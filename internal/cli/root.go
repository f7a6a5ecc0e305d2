package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/peerpanel/internal/logging"
	"github.com/ppiankov/peerpanel/internal/model"
)

const version = "peerpanel v0.3.0"

var (
	cfgFile  string
	verbose  bool
	logLevel string
	logFile  string

	logger = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "peerpanel",
	Short: "peerpanel - multi-agent peer review for research papers",
	Long: `peerpanel reviews a research paper with a panel of facet-specialised
reviewer agents (methods, novelty, claims vs evidence, reproducibility,
figures and tables, clarity, ethics and licensing, societal impact, related
work), merges their points into one review, drops ungrounded points, and
then runs an author-rebuttal round whose verified answers revise the review.

Every point in the final review is anchored to a section, figure or table.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		l, err := logging.New(logging.Options{
			Level: cfg.Logging.Level,
			File:  cfg.Logging.File,
			JSON:  cfg.Logging.JSON,
		})
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.peerpanel/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this rotating file")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in .env files, the config file and ENV variables
func initConfig() {
	// Missing .env files are fine; existing environment wins over them
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.secret")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".peerpanel"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := setDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	// PEERPANEL_LLM_MODEL overrides llm.model and so on
	viper.SetEnvPrefix("PEERPANEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key of cfg as a viper default so AutomaticEnv
// can override keys that no config file mentions
func setDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	setTree(v, "", tree)
	// Secret and optional keys are omitted from the YAML but still settable
	for _, key := range []string{"llm.api_key", "llm.base_url", "llm.http_proxy", "llm.https_proxy", "llm.no_proxy", "related.mailto", "logging.file"} {
		if !v.IsSet(key) {
			v.SetDefault(key, "")
		}
	}
	return nil
}

func setTree(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setTree(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// loadConfig builds the effective configuration from defaults, config file
// and environment. Command flags are applied on top by the caller.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// finishConfig fills in credentials and validates cfg once flags are applied
func finishConfig(cfg *model.Config) error {
	applyProviderEnv(cfg)
	if err := requireAPIKey(cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

// applyProviderEnv reads credentials the config file left unset
func applyProviderEnv(cfg *model.Config) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "gemini", "google":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	case "ollama":
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
}

// requireAPIKey fails early for hosted providers without credentials
func requireAPIKey(cfg *model.Config) error {
	if cfg.LLM.APIKey != "" {
		return nil
	}
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	case "anthropic", "claude":
		return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	case "gemini", "google":
		return fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	return nil
}
