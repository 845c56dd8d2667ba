package types

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jianlins/FastContext/logger"
	"gopkg.in/yaml.v3"
)

const (
	TokenizerWhitespace = "whitespace"
	TokenizerChars      = "chars"

	// features
	FeaturesAttributes = "features"
	PolarityAttributes = "polarity"

	S3Prefix = "s3://"
	// DefaultRules names the embedded rule set.
	DefaultRules = "default"
)

var (
	ErrNoRules          = errors.New("configuration: rules are not set")
	ErrUnknownTokenizer = errors.New("configuration: unknown tokenizer")
)

// Configuration describes one classifier: its rule source, matching options
// and the attributes added to the response.
type Configuration struct {
	Name              string            `json:"name"`
	FilePath          string            `json:"file_path"`
	Rules             string            `yaml:"rules" json:"rules"`
	CaseSensitive     bool              `yaml:"case_sensitive" json:"case_sensitive"`
	SkipBlankTokens   bool              `yaml:"skip_blank_tokens" json:"skip_blank_tokens"`
	Trace             bool              `yaml:"trace" json:"trace"`
	MaxTokens         int               `yaml:"max_tokens" json:"max_tokens"`
	Tokenizer         string            `yaml:"tokenizer" json:"tokenizer"`
	TypeHierarchy     map[string]string `yaml:"type_hierarchy" json:"type_hierarchy"`
	NegationModifiers []string          `yaml:"negation_modifiers" json:"negation_modifiers"`
	Features          []string          `yaml:"features" json:"features"`
}

func (cfg Configuration) CheckFeature(featureName string) bool {
	for _, feat := range cfg.Features {
		if feat == featureName {
			return true
		}
	}
	return false
}

func (cfg Configuration) Validate() error {
	if cfg.Rules == "" {
		return fmt.Errorf("%w in %q", ErrNoRules, cfg.Name)
	}
	switch cfg.Tokenizer {
	case "", TokenizerWhitespace, TokenizerChars:
		return nil
	}
	return fmt.Errorf("%w %q in %q", ErrUnknownTokenizer, cfg.Tokenizer, cfg.Name)
}

// Negations is the set of modifiers that make a concept negative.
func (cfg Configuration) Negations() map[string]bool {
	modifiers := cfg.NegationModifiers
	if len(modifiers) == 0 {
		modifiers = []string{"negated"}
	}
	set := make(map[string]bool, len(modifiers))
	for _, modifier := range modifiers {
		set[modifier] = true
	}
	return set
}

// ParseConfiguration decodes a yaml configuration. Relative rule paths are
// resolved against dir.
func ParseConfiguration(name string, dir string, buf []byte) (Configuration, error) {
	cfg := Configuration{Name: name, FilePath: filepath.Join(dir, name+".yaml")}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Rules != "" && cfg.Rules != DefaultRules && !strings.HasPrefix(cfg.Rules, S3Prefix) && !filepath.IsAbs(cfg.Rules) {
		cfg.Rules = filepath.Join(dir, cfg.Rules)
	}
	return cfg, cfg.Validate()
}

// LoadConfigurations reads every *.yaml file of a directory, sorted by name.
// Invalid files are logged and skipped.
func LoadConfigurations(dirPath string) ([]Configuration, error) {
	cfgLogger := logger.NewLogger("LoadConfigurations")

	files, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	configChan := make(chan Configuration, len(files))
	for _, f := range files {
		// Skip dirs and non-yaml files
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".yaml") {
			continue
		}

		wg.Add(1)
		go func(file os.DirEntry) {
			defer wg.Done()
			name := strings.TrimSuffix(file.Name(), ".yaml")
			buf, err := os.ReadFile(filepath.Join(dirPath, file.Name()))
			if err != nil {
				cfgLogger.Err(err).Str("file", file.Name()).Msg("Failed to read configuration")
				return
			}
			cfg, err := ParseConfiguration(name, dirPath, buf)
			if err != nil {
				cfgLogger.Err(err).Str("file", file.Name()).Msg("Skipping invalid configuration")
				return
			}
			configChan <- cfg
		}(f)
	}

	go func() {
		wg.Wait()
		close(configChan)
	}()

	configs := make([]Configuration, 0, len(files))
	for cfg := range configChan {
		configs = append(configs, cfg)
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].Name < configs[j].Name
	})
	return configs, nil
}
