package rules

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/jianlins/FastContext/fastcontext"
	"github.com/jianlins/FastContext/logger"
	"github.com/jianlins/FastContext/types"
	"github.com/jianlins/FastContext/utils"
)

// DefaultLocation selects the embedded general clinical rule set.
const DefaultLocation = types.DefaultRules

var (
	ErrRuleFileNotFound  = errors.New("rules: rule file not found")
	ErrMalformedRuleFile = errors.New("rules: rule file has malformed records")
	ErrEmptyRuleFile     = errors.New("rules: rule file has no rules")
	ErrNoDownloader      = errors.New("rules: no S3 client for s3 location")
)

//go:embed resources/context_rules.txt
var resources embed.FS

var loaderLogger = logger.NewLogger("Rule loader")

// Downloader fetches an object from the document storage.
type Downloader interface {
	Download(key string) ([]byte, error)
}

// Report lists what happened while loading one rule source.
type Report struct {
	Location string
	Rules    int
	Issues   []error
}

// Err is ErrMalformedRuleFile joined with every issue, or nil.
func (report Report) Err() error {
	if len(report.Issues) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrMalformedRuleFile, report.Location, errors.Join(report.Issues...))
}

// Parse decodes rule records from r. Malformed records are reported, a
// source without any rule fails with ErrEmptyRuleFile.
func Parse(r io.Reader, location string) (fastcontext.Definitions, Report, error) {
	report := Report{Location: location}
	lines, err := utils.ReadLines(r)
	if err != nil {
		return fastcontext.Definitions{}, report, fmt.Errorf("rules: reading %s: %w", location, err)
	}
	defs, issues := fastcontext.ParseLines(lines)
	report.Issues = issues
	report.Rules = len(defs.Rules)
	if len(defs.Rules) == 0 {
		return defs, report, fmt.Errorf("%w: %s", ErrEmptyRuleFile, location)
	}
	return defs, report, nil
}

func LoadFile(path string) (fastcontext.Definitions, Report, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fastcontext.Definitions{}, Report{Location: path}, fmt.Errorf("%w: %s", ErrRuleFileNotFound, path)
		}
		return fastcontext.Definitions{}, Report{Location: path}, err
	}
	defer f.Close()
	return Parse(f, path)
}

func LoadS3(downloader Downloader, key string) (fastcontext.Definitions, Report, error) {
	location := types.S3Prefix + key
	if downloader == nil {
		return fastcontext.Definitions{}, Report{Location: location}, ErrNoDownloader
	}
	data, err := downloader.Download(key)
	if err != nil {
		return fastcontext.Definitions{}, Report{Location: location}, fmt.Errorf("%w: %s: %v", ErrRuleFileNotFound, location, err)
	}
	return Parse(bytes.NewReader(data), location)
}

func LoadDefault() (fastcontext.Definitions, Report, error) {
	f, err := resources.Open("resources/context_rules.txt")
	if err != nil {
		return fastcontext.Definitions{}, Report{Location: DefaultLocation}, err
	}
	defer f.Close()
	return Parse(f, DefaultLocation)
}

// Load dispatches on the location: "default", "s3://key" or a file path.
func Load(location string, downloader Downloader) (fastcontext.Definitions, Report, error) {
	switch {
	case location == "" || location == DefaultLocation:
		return LoadDefault()
	case strings.HasPrefix(location, types.S3Prefix):
		return LoadS3(downloader, strings.TrimPrefix(location, types.S3Prefix))
	default:
		return LoadFile(location)
	}
}

// Build loads and compiles a rule source. Skipped records are logged and
// added to the report, they do not fail the build.
func Build(location string, opts fastcontext.Options, downloader Downloader) (*fastcontext.RuleSet, Report, error) {
	defs, report, err := Load(location, downloader)
	if err != nil {
		return nil, report, err
	}
	ruleSet, err := fastcontext.Compile(defs, opts)
	if err != nil {
		return nil, report, fmt.Errorf("rules: compiling %s: %w", location, err)
	}
	report.Issues = append(report.Issues, ruleSet.Warnings()...)
	report.Rules = ruleSet.Len()
	for _, issue := range report.Issues {
		loaderLogger.Warn().Err(issue).Str("location", location).Msg("Rule record issue")
	}
	loaderLogger.Info().
		Str("location", location).
		Int("rules", report.Rules).
		Int("issues", len(report.Issues)).
		Msg("Loaded rules")
	return ruleSet, report, nil
}
