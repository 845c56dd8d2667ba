package main

import (
	"fmt"

	"github.com/jianlins/FastContext/pipeline"
	"github.com/jianlins/FastContext/rules"
	"github.com/jianlins/FastContext/types"
	"github.com/spf13/cobra"
)

var strict bool

var checkCmd = &cobra.Command{
	Use:   "check [rule file...]",
	Short: "Load rule files and print the records that were skipped",
	Long:  "Without arguments, checks the rules of every configuration. Exits non-zero when a rule source cannot be compiled, or with --strict when any record was skipped.",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&strict, "strict", false, "fail on skipped records")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfgs := make([]types.Configuration, len(args))
	for i, path := range args {
		cfgs[i] = types.Configuration{Name: path, Rules: path}
	}
	if len(args) == 0 {
		config, err := readConfig()
		if err != nil {
			return err
		}
		if cfgs, err = configurations(config); err != nil {
			return err
		}
	}
	locations := make([]string, len(cfgs))
	for i, cfg := range cfgs {
		locations[i] = cfg.Rules
	}
	downloader, err := downloaderFor(locations...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, cfg := range cfgs {
		ruleSet, report, err := rules.Build(cfg.Rules, pipeline.Options(cfg), downloader)
		for _, issue := range report.Issues {
			fmt.Fprintf(out, "%s: warning: %v\n", report.Location, issue)
		}
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(out, "%s: error: %v\n", cfg.Rules, err)
		case strict && len(report.Issues) > 0:
			failed++
			fmt.Fprintf(out, "%s: %d rules, %d skipped records\n", report.Location, ruleSet.Len(), len(report.Issues))
		default:
			fmt.Fprintf(out, "%s: %d rules, fingerprint %016x\n", report.Location, ruleSet.Len(), ruleSet.Fingerprint())
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d rule sources failed", failed, len(cfgs))
	}
	return nil
}
