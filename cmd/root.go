package cmd

import (
	"errors"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "ats-checker"
)

type Config struct {
	AI      *AIConfig      `mapstructure:"ai"`
	History *HistoryConfig `mapstructure:"history"`
	Server  *ServerConfig  `mapstructure:"server"`
	Limits  *LimitsConfig  `mapstructure:"limits"`
}

type AIConfig struct {
	// Mode is auto, openai or gemini.
	Mode   string          `mapstructure:"mode"`
	OpenAI *ProviderConfig `mapstructure:"openai"`
	Gemini *ProviderConfig `mapstructure:"gemini"`
}

// ProviderConfig configures one LLM vendor. MaxAttempts counts the first request, so 1 disables retries.
type ProviderConfig struct {
	APIKey      string `mapstructure:"api-key"`
	APIKeyFile  string `mapstructure:"api-key-file"`
	Model       string `mapstructure:"model"`
	MaxAttempts int    `mapstructure:"max-attempts"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ServerConfig configures the HTTP API. HistoryAccess is off, loopback or public.
type ServerConfig struct {
	Addr          string `mapstructure:"addr"`
	ReadTimeout   string `mapstructure:"read-timeout"`
	WriteTimeout  string `mapstructure:"write-timeout"`
	HistoryAccess string `mapstructure:"history-access"`
}

type LimitsConfig struct {
	MaxUploadMB int `mapstructure:"max-upload-mb"`
	// Executions caps analyses per email. Zero disables the cap.
	Executions int `mapstructure:"executions"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "ats-checker scores resumes for ATS compatibility and asks an LLM how well they fit a job",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range map[string]string{
		"ai.openai.api-key-file": "OPENAI_API_KEY_FILE",
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"ai.mode":                "ATS_CHECKER_AI_MODE",
		"history.path":           "ATS_CHECKER_DB",
		"server.addr":            "ATS_CHECKER_ADDR",
		"server.history-access":  "ATS_CHECKER_HISTORY_ACCESS",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("ai.mode", "auto")
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.path", app+".db")
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.read-timeout", "30s")
	viper.SetDefault("server.write-timeout", "3m")
	viper.SetDefault("server.history-access", "loopback")
	viper.SetDefault("limits.max-upload-mb", 2)
	viper.SetDefault("limits.executions", 0)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is ats-checker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional unless given explicitly, but it must parse.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.OpenAI == nil {
		config.AI.OpenAI = &ProviderConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &ProviderConfig{}
	}
	if config.History == nil {
		config.History = &HistoryConfig{}
	}
	if config.Server == nil {
		config.Server = &ServerConfig{}
	}
	if config.Limits == nil {
		config.Limits = &LimitsConfig{}
	}

	return config, nil
}
