// Command pardon-runner replays a file of declared test cases against a
// collection, spec.md §6's CLI surface: "pardon-runner runs test
// flows."
//
// Grounded on the teacher's cli/cmd/root.go cobra shape and
// runtime/executor.go's step-sequencing, generalized here from "execute
// a flow's typed task steps" to "execute each declared case as one
// pipeline.Execution and compare its outcome against what the case
// expects".
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pardon-http/pardon/internal/collection"
	"github.com/pardon-http/pardon/internal/config"
	"github.com/pardon-http/pardon/internal/configspace"
	"github.com/pardon-http/pardon/internal/pardonerr"
	"github.com/pardon-http/pardon/internal/pipeline"
	"github.com/pardon-http/pardon/internal/tracker"
	"github.com/pardon-http/pardon/internal/transport"
)

const (
	exitSuccess = 0
	exitUser    = 1
	exitConfig  = 2
	exitNetwork = 3
)

// Case is one declared test flow: an ask plus the outcome/endpoint it is
// expected to produce once matched, rendered, and executed.
type Case struct {
	Name           string         `yaml:"name"`
	Method         string         `yaml:"method"`
	URL            string         `yaml:"url"`
	Values         map[string]any `yaml:"values"`
	ExpectOutcome  string         `yaml:"expectOutcome"`
	ExpectEndpoint string         `yaml:"expectEndpoint"`
}

// CaseFile is the top-level shape of a `--cases` YAML document.
type CaseFile struct {
	Cases []Case `yaml:"cases"`
}

var (
	layers     []string
	casePath   string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "pardon-runner",
	Short: "Run declared test flows against a Pardon endpoint collection",
	RunE:  runCases,
}

func init() {
	rootCmd.Flags().StringSliceVarP(&layers, "layer", "l", []string{"."}, "collection layer directory (repeatable, ordered)")
	rootCmd.Flags().StringVarP(&casePath, "cases", "c", "flows.test.yaml", "path to a YAML file of test cases")
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML settings file (layers, http, history)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func runCases(cmd *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	raw, err := os.ReadFile(casePath)
	if err != nil {
		return &pardonerr.ConfigurationError{Path: casePath, Message: err.Error()}
	}
	var file CaseFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return &pardonerr.ConfigurationError{Path: casePath, Message: err.Error()}
	}
	if len(file.Cases) == 0 {
		return &pardonerr.ConfigurationError{Path: casePath, Message: "no cases declared"}
	}

	override := map[string]any{}
	if cmd.Flags().Changed("layer") {
		override["layers"] = layers
	}
	settings, err := config.Load(configPath, override)
	if err != nil {
		return &pardonerr.ConfigurationError{Path: configPath, Message: err.Error()}
	}

	col, err := collection.Build(settings.Layers...)
	if err != nil {
		return &pardonerr.ConfigurationError{Path: fmt.Sprint(settings.Layers), Message: err.Error()}
	}
	if len(col.Endpoints) == 0 {
		return &pardonerr.ConfigurationError{Path: fmt.Sprint(settings.Layers), Message: "no endpoints loaded"}
	}

	space := configspace.New(map[string]any{})
	env := pipeline.NewEnvironment(space)
	fetcher := transport.New(transport.Config{
		Timeout:     time.Duration(settings.HTTP.TimeoutSeconds) * time.Second,
		MaxRetries:  settings.HTTP.MaxRetries,
		RetryWaitMS: settings.HTTP.RetryWaitMS,
		Debug:       settings.HTTP.Debug,
	})

	var failures int
	for _, c := range file.Cases {
		tr := tracker.New()
		ask := pipeline.Ask{Method: c.Method, URL: c.URL, Values: c.Values}
		exec := pipeline.Init(ask, col.Candidates(), *env, tr, fetcher, nil)

		result, err := exec.Process(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "case failed", "name", c.Name, "error", err)
			failures++
			continue
		}

		match, _ := exec.Match(ctx)
		ok := true
		if c.ExpectOutcome != "" && result.Outcome != c.ExpectOutcome {
			ok = false
		}
		if c.ExpectEndpoint != "" && match != nil && match.Endpoint.Label() != c.ExpectEndpoint {
			ok = false
		}
		if ok {
			logger.InfoContext(ctx, "case passed", "name", c.Name, "outcome", result.Outcome)
		} else {
			logger.ErrorContext(ctx, "case failed assertion", "name", c.Name, "outcome", result.Outcome)
			failures++
		}
	}

	if failures > 0 {
		return &pardonerr.FlowError{Flow: casePath, Message: fmt.Sprintf("%d/%d cases failed", failures, len(file.Cases))}
	}
	return nil
}

func exitCodeFor(err error) int {
	switch err.(type) {
	case *pardonerr.ConfigurationError:
		return exitConfig
	case *pardonerr.FlowError:
		return exitUser
	}
	var execErr *pardonerr.ExecutionError
	if eerr, ok := err.(*pardonerr.ExecutionError); ok {
		execErr = eerr
		if execErr.Stage == pardonerr.StageFetch {
			return exitNetwork
		}
		return exitUser
	}
	return exitUser
}
