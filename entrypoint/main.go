package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jianlins/FastContext/logger"
	"github.com/jianlins/FastContext/metrics"
	"github.com/jianlins/FastContext/pipeline"
	"github.com/jianlins/FastContext/rules"
	"github.com/jianlins/FastContext/s3client"
	"github.com/jianlins/FastContext/types"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
)

type Config struct {
	ConfigPath    string        `envconfig:"FASTCONTEXT_CONFIG_PATH"`
	RulesPath     string        `envconfig:"FASTCONTEXT_RULES_PATH" default:"default"`
	RestAPIActive bool          `envconfig:"FASTCONTEXT_REST_API_ACTIVE" default:"false"`
	RestAPIPort   string        `envconfig:"FASTCONTEXT_REST_API_PORT" default:"10000"`
	WorkerActive  bool          `envconfig:"FASTCONTEXT_WORKER_ACTIVE" default:"true"`
	WatchRules    bool          `envconfig:"FASTCONTEXT_WATCH_RULES" default:"true"`
	CacheActive   bool          `envconfig:"FASTCONTEXT_CACHE_ACTIVE" default:"false"`
	CacheTTL      time.Duration `envconfig:"FASTCONTEXT_CACHE_TTL" default:"24h"`
	Parallelism   int           `envconfig:"FASTCONTEXT_PARALLELISM" default:"0"`
}

const (
	defaultConfigName       = "general"
	pipelineStartMaxRetries = 5
	pipelineStartRetryDelay = 5 * time.Second
)

var mainLogger = logger.NewLogger("Main")

var rootCmd = &cobra.Command{
	Use:           "fastcontext",
	Short:         "Contextual assertions for clinical concepts",
	Long:          "Classifies whether clinical concepts are negated, uncertain, historical or about someone other than the patient.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	logger.SetupLogging()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func readConfig() (Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		mainLogger.Err(err).Msg("Failed to read environment")
		return config, err
	}
	return config, nil
}

// configurations reads the configuration directory. Without one, or when it
// holds no valid configuration, a single configuration uses RulesPath.
func configurations(config Config) ([]types.Configuration, error) {
	if config.ConfigPath != "" {
		cfgs, err := types.LoadConfigurations(config.ConfigPath)
		if err != nil {
			return nil, err
		}
		if len(cfgs) > 0 {
			return cfgs, nil
		}
		mainLogger.Warn().Str("path", config.ConfigPath).Msg("No configuration found, using rules path")
	}
	return []types.Configuration{{
		Name:     defaultConfigName,
		Rules:    config.RulesPath,
		Features: []string{types.FeaturesAttributes, types.PolarityAttributes},
	}}, nil
}

// downloaderFor connects to S3 only when a rule source lives there.
func downloaderFor(locations ...string) (rules.Downloader, error) {
	for _, location := range locations {
		if strings.HasPrefix(location, types.S3Prefix) {
			return s3client.New()
		}
	}
	return nil, nil
}

func loadClassifiers(config Config, m *metrics.Metrics) ([]pipeline.Classifier, error) {
	cfgs, err := configurations(config)
	if err != nil {
		return nil, err
	}
	locations := make([]string, len(cfgs))
	for i, cfg := range cfgs {
		locations[i] = cfg.Rules
	}
	downloader, err := downloaderFor(locations...)
	if err != nil {
		return nil, err
	}
	mainLogger.Info().Int("configurations", len(cfgs)).Msg("Loading rules")
	return pipeline.NewClassifiers(cfgs, downloader, m)
}
