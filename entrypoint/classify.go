package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jianlins/FastContext/api"
	"github.com/jianlins/FastContext/pipeline"
	"github.com/jianlins/FastContext/tokenizer"
	"github.com/jianlins/FastContext/types"
	"github.com/spf13/cobra"
)

var classifyFlags struct {
	config   string
	sentence string
	begin    int
	end      int
	conceptT string
}

var classifyCmd = &cobra.Command{
	Use:   "classify [document.json|-]",
	Short: "Classify the concepts of a document, or one concept of a sentence",
	Long: "Reads a JSON document (text, sentences, concepts) from a file or stdin and prints the response of every configuration.\n" +
		"With --sentence, classifies the concept at the character range [--begin, --end) of that sentence.",
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

func init() {
	flags := classifyCmd.Flags()
	flags.StringVarP(&classifyFlags.config, "config", "c", "", "configuration name, the first one when empty")
	flags.StringVarP(&classifyFlags.sentence, "sentence", "s", "", "sentence holding the concept")
	flags.IntVar(&classifyFlags.begin, "begin", 0, "first character of the concept")
	flags.IntVar(&classifyFlags.end, "end", 0, "character after the concept")
	flags.StringVarP(&classifyFlags.conceptT, "type", "t", "", "concept type for feature projection")
}

func runClassify(cmd *cobra.Command, args []string) error {
	config, err := readConfig()
	if err != nil {
		return err
	}
	classifiers, err := loadClassifiers(config, nil)
	if err != nil {
		return err
	}

	if classifyFlags.sentence != "" {
		resp, err := classifySentence(classifiers)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	}

	if len(args) == 0 {
		return errors.New("a document file or --sentence is required")
	}
	buf, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	doc, err := pipeline.ParseDocument(buf)
	if err != nil {
		return err
	}
	ppln, err := pipeline.Context(pipeline.ContextParams{Classifiers: classifiers, Parallelism: config.Parallelism})
	if err != nil {
		return err
	}
	resp, ok := <-ppln(pipeline.Request{Tid: "cli", Document: doc})
	if !ok {
		return errors.New("pipeline returned no response")
	}
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(resp), "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(cmd.OutOrStdout())
	return err
}

func classifySentence(classifiers []pipeline.Classifier) (api.ClassifyResponse, error) {
	var resp api.ClassifyResponse
	var classifier *pipeline.Classifier
	for i := range classifiers {
		if classifyFlags.config == "" || classifiers[i].Config.Name == classifyFlags.config {
			classifier = &classifiers[i]
			break
		}
	}
	if classifier == nil {
		return resp, fmt.Errorf("%w %q", api.ErrUnknownConfig, classifyFlags.config)
	}

	tokens := tokenizer.Whitespace(classifyFlags.sentence)
	if classifier.Config.Tokenizer == types.TokenizerChars {
		tokens = tokenizer.Chars(classifyFlags.sentence)
	}
	begin, end, ok := tokenizer.Locate(tokens, int32(classifyFlags.begin), int32(classifyFlags.end))
	if !ok {
		return resp, fmt.Errorf("no token in [%d, %d)", classifyFlags.begin, classifyFlags.end)
	}

	ruleSet := classifier.Registry.RuleSet()
	assertions, err := ruleSet.MatchContext(tokens, begin, end)
	if err != nil {
		return resp, err
	}
	resp = api.ClassifyResponse{Config: classifier.Config.Name, Modifiers: assertions.Modifiers()}
	if resp.Assertions, err = json.Marshal(assertions); err != nil {
		return resp, err
	}
	if classifyFlags.conceptT != "" {
		features, err := ruleSet.ProjectFeatures(assertions, classifyFlags.conceptT)
		if err != nil {
			return resp, err
		}
		if resp.Features, err = json.Marshal(features); err != nil {
			return resp, err
		}
	}
	if classifier.Config.CheckFeature(types.PolarityAttributes) {
		resp.Polarity = types.PolarityOf(resp.Modifiers, classifier.Config.Negations()).Name()
	}
	return resp, nil
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}

func printJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
