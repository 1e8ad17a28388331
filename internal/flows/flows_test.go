package flows

import (
	"context"
	"testing"

	"github.com/pardon-http/pardon/internal/pipeline"
	"github.com/pardon-http/pardon/internal/tracker"
)

func TestComposeValuesDict_RequiredOptionalDefaultRest(t *testing.T) {
	sig := Signature{
		{Name: "user", Kind: ParamRequired},
		{Name: "limit", Kind: ParamDefault, Default: 10},
		{Name: "verbose", Kind: ParamOptional},
		{Name: "rest", Kind: ParamRest},
	}
	options := map[string]any{"user": "alice", "extra": "x"}
	environment := map[string]any{"limit": 25}

	out, err := ComposeValuesDict(sig, options, environment)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["user"] != "alice" {
		t.Errorf("expected user=alice, got %v", out["user"])
	}
	if out["limit"] != 25 {
		t.Errorf("expected environment to supply limit over default, got %v", out["limit"])
	}
	if _, ok := out["verbose"]; ok {
		t.Errorf("expected unset optional to be absent, got %v", out["verbose"])
	}
	rest, ok := out["rest"].(map[string]any)
	if !ok || rest["extra"] != "x" {
		t.Errorf("expected rest to collect unclaimed keys, got %+v", out["rest"])
	}
}

func TestComposeValuesDict_MissingRequired(t *testing.T) {
	sig := Signature{{Name: "token", Kind: ParamRequired}}
	if _, err := ComposeValuesDict(sig, nil, nil); err == nil {
		t.Fatalf("expected error for missing required parameter")
	}
}

type fakeRunner struct {
	tr       *tracker.Tracker
	byLabel  map[string]map[string]any
	executed []string
}

func (r *fakeRunner) Execute(ask pipeline.Ask, endpoints []pipeline.Endpoint) *pipeline.Execution {
	r.executed = append(r.executed, ask.URL)
	env := pipeline.NewEnvironment(nil)
	return pipeline.Init(ask, endpoints, *env, r.tr, stubFetcher{output: r.byLabel[ask.URL]}, nil)
}

func (r *fakeRunner) Await(current, awaited tracker.ChainID) {
	r.tr.Await(current, awaited)
}

type stubFetcher struct {
	output map[string]any
}

func (s stubFetcher) Fetch(ctx context.Context, request map[string]any) (pipeline.Ingress, error) {
	return pipeline.Ingress{Status: 200}, nil
}

func TestRun_FunctionAction(t *testing.T) {
	f := Flow{
		Name:      "double",
		Signature: Signature{{Name: "n", Kind: ParamRequired}},
		Action: Action{
			Run: func(ctx context.Context, argument map[string]any) (map[string]any, error) {
				n := argument["n"].(int)
				return map[string]any{"result": n * 2}, nil
			},
		},
	}
	out, err := Run(context.Background(), f, map[string]any{"n": 21}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["result"] != 42 {
		t.Errorf("expected 42, got %v", out["result"])
	}
}
