// Command pardon renders and executes a single ask against a collection
// of endpoints, spec.md §6's CLI surface: "pardon <ask> renders/executes
// a request; flags select endpoint hints, override values, toggle
// secrets, select an environment."
//
// Grounded on the teacher's cli/cmd/root.go (persistent-flag + RunE
// cobra command shape) and runtime/execution.go's six-stage pipeline,
// wired here through internal/pipeline/internal/collection/internal/
// transport instead of the teacher's task-graph executor.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pardon-http/pardon/internal/collection"
	"github.com/pardon-http/pardon/internal/config"
	"github.com/pardon-http/pardon/internal/configspace"
	"github.com/pardon-http/pardon/internal/history"
	"github.com/pardon-http/pardon/internal/pardonerr"
	"github.com/pardon-http/pardon/internal/pipeline"
	"github.com/pardon-http/pardon/internal/tracker"
	"github.com/pardon-http/pardon/internal/transport"
)

// Exit codes per spec §6: 0 success, 1 user error, 2 configuration
// error, 3 network error.
const (
	exitSuccess = 0
	exitUser    = 1
	exitConfig  = 2
	exitNetwork = 3
)

var (
	layers      []string
	values      []string
	secrets     []string
	envChoices  []string
	method      string
	previewOnly bool
	historyDSN  string
	jsonOutput  bool
	configPath  string
)

var rootCmd = &cobra.Command{
	Use:   "pardon <url>",
	Short: "Render and execute a request against a Pardon endpoint collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.Flags().StringSliceVarP(&layers, "layer", "l", []string{"."}, "collection layer directory (repeatable, ordered)")
	rootCmd.Flags().StringSliceVarP(&values, "value", "v", nil, "bind a value as name=value (repeatable)")
	rootCmd.Flags().StringSliceVar(&secrets, "secret", nil, "bind a secret value as name=value (repeatable, recorded separately in history)")
	rootCmd.Flags().StringSliceVar(&envChoices, "env", nil, "choose a config space dimension as name=value (repeatable)")
	rootCmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method")
	rootCmd.Flags().BoolVar(&previewOnly, "preview", false, "render the request without executing it")
	rootCmd.Flags().StringVar(&historyDSN, "history", "pardon-history.db", "SQLite history store DSN")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML settings file (layers, http, history)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// configOverride carries explicitly-set flags into config.Load's merge
// step, so a flag given on the command line wins over the settings file
// without a flag's zero value silently clobbering a configured one.
func configOverride(cmd *cobra.Command) map[string]any {
	override := map[string]any{}
	if cmd.Flags().Changed("layer") {
		override["layers"] = layers
	}
	if cmd.Flags().Changed("history") {
		override["history"] = map[string]any{"dsn": historyDSN}
	}
	return override
}

func parsePairs(pairs []string) map[string]any {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		out[name] = value
	}
	return out
}

func runAsk(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	settings, err := config.Load(configPath, configOverride(cmd))
	if err != nil {
		return &pardonerr.ConfigurationError{Path: configPath, Message: err.Error()}
	}

	col, err := collection.Build(settings.Layers...)
	if err != nil {
		return &pardonerr.ConfigurationError{Path: strings.Join(settings.Layers, ","), Message: err.Error()}
	}
	for _, loadErr := range col.Errors {
		logger.WarnContext(ctx, "collection: asset failed to load", "error", loadErr)
	}
	if len(col.Endpoints) == 0 {
		return &pardonerr.ConfigurationError{Path: strings.Join(settings.Layers, ","), Message: "no endpoints loaded"}
	}

	var space *configspace.Space
	if cfg, ok := col.Configurations[""]["config"].(map[string]any); ok {
		space = configspace.New(cfg)
	} else {
		space = configspace.New(map[string]any{})
	}
	if len(envChoices) > 0 {
		space = space.Choose(parseRows(envChoices))
	}

	store, err := history.Open(ctx, history.Config{DSN: settings.History.DSN, MaxOpenConns: settings.History.MaxOpenConns}, logger)
	if err != nil {
		return &pardonerr.ConfigurationError{Path: settings.History.DSN, Message: err.Error()}
	}
	defer store.Shutdown(ctx)

	env := pipeline.NewEnvironment(space)
	tr := tracker.New()
	fetcher := transport.New(transport.Config{
		Timeout:     time.Duration(settings.HTTP.TimeoutSeconds) * time.Second,
		MaxRetries:  settings.HTTP.MaxRetries,
		RetryWaitMS: settings.HTTP.RetryWaitMS,
		Debug:       settings.HTTP.Debug,
	})

	ask := pipeline.Ask{
		Method: strings.ToUpper(method),
		URL:    args[0],
		Values: mergeValues(values, secrets),
	}

	exec := pipeline.Init(ask, col.Candidates(), *env, tr, fetcher, nil)

	if previewOnly {
		egress, err := exec.Preview(ctx)
		if err != nil {
			return err
		}
		return printResult(egress.Redacted)
	}

	result, err := exec.Process(ctx)
	if err != nil {
		return err
	}

	rendered, _ := exec.Render(ctx)
	ing, _ := exec.Fetch(ctx)
	recordHistory(ctx, store, logger, ask, rendered, ing, result)

	return printResult(map[string]any{"outcome": result.Outcome, "output": result.Output})
}

func mergeValues(plain, secret []string) map[string]any {
	out := parsePairs(plain)
	for k, v := range parsePairs(secret) {
		out[k] = v
	}
	return out
}

func parseRows(pairs []string) configspace.Row {
	row := configspace.Row{}
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		row[name] = value
	}
	return row
}

func recordHistory(ctx context.Context, store *history.Store, logger *slog.Logger, ask pipeline.Ask, rendered *pipeline.Egress, ing *pipeline.Ingress, result *pipeline.Result) {
	reqJSON, resJSON := "", ""
	if rendered != nil {
		if b, err := json.Marshal(rendered.Redacted); err == nil {
			reqJSON = string(b)
		}
	}
	if ing != nil {
		if b, err := json.Marshal(result.Output); err == nil {
			resJSON = string(b)
		}
	}
	secretValues := parsePairs(secrets)
	recorded := ask
	recorded.Values = make(map[string]any, len(ask.Values))
	for name, value := range ask.Values {
		if _, secret := secretValues[name]; !secret {
			recorded.Values[name] = value
		}
	}
	askJSON, _ := json.Marshal(recorded)

	id, err := store.Append(ctx, history.Record{Ask: string(askJSON), Req: reqJSON, Res: resJSON})
	if err != nil {
		logger.WarnContext(ctx, "history: failed to append record", "error", err)
		return
	}
	for name, value := range secretValues {
		_ = store.PutSecret(ctx, id, name, fmt.Sprint(value))
	}
	for name, value := range recorded.Values {
		_ = store.RecordValue(ctx, history.Value{HTTP: id, Kind: history.ValueAsk, Name: name, Value: fmt.Sprint(value)})
	}
}

func printResult(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

// exitCodeFor classifies err into spec §6's exit-code table by walking
// its cause chain for a recognizable pardonerr type.
func exitCodeFor(err error) int {
	var cfgErr *pardonerr.ConfigurationError
	if errors.As(err, &cfgErr) {
		return exitConfig
	}
	var execErr *pardonerr.ExecutionError
	if errors.As(err, &execErr) {
		switch execErr.Stage {
		case pardonerr.StageFetch:
			return exitNetwork
		case pardonerr.StageMatch:
			return exitUser
		default:
			return exitUser
		}
	}
	var parseErr *pardonerr.ParseError
	if errors.As(err, &parseErr) {
		return exitConfig
	}
	return exitUser
}
