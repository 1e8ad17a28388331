package httpsfile

import "testing"

func TestParse_SingleRequestResponse(t *testing.T) {
	source := "" +
		"env: stage\n" +
		">>>\n" +
		"POST /login\n" +
		"Content-Type: application/json\n" +
		"\n" +
		`{"user":"alice"}` + "\n" +
		"<<<\n" +
		"200 OK\n" +
		"?outcome: ok\n" +
		"Content-Type: application/json\n" +
		"\n" +
		`{"token":"{{token}}"}` + "\n"

	f, err := Parse(source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Config["env"] != "stage" {
		t.Fatalf("expected config header env=stage, got %+v", f.Config)
	}
	if len(f.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(f.Blocks))
	}
	req := f.Blocks[0]
	if req.Kind != KindRequest || req.Line != "POST /login" {
		t.Errorf("unexpected request block: %+v", req)
	}
	if req.HeaderValue("Content-Type") != "application/json" {
		t.Errorf("expected content-type header, got %+v", req.Headers)
	}
	if req.Body != `{"user":"alice"}` {
		t.Errorf("unexpected request body: %q", req.Body)
	}

	resp := f.Blocks[1]
	if resp.Kind != KindResponse || resp.Line != "200 OK" {
		t.Errorf("unexpected response block: %+v", resp)
	}
	if resp.Outcome != "ok" {
		t.Errorf("expected outcome ok, got %q", resp.Outcome)
	}
	if resp.Body != `{"token":"{{token}}"}` {
		t.Errorf("unexpected response body: %q", resp.Body)
	}
}

func TestParse_MultiStepFlowSequence(t *testing.T) {
	source := "" +
		">>>\n" +
		"POST /login\n" +
		"\n" +
		"\n" +
		"<<<\n" +
		"200\n" +
		"\n" +
		`{"token":"abc"}` + "\n" +
		">>>\n" +
		"GET /me\n" +
		"Authorization: Bearer {{token}}\n" +
		"\n" +
		"\n" +
		"<<<\n" +
		"200\n" +
		"\n" +
		`{"id":1}` + "\n"

	f, err := Parse(source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(f.Blocks))
	}
	if f.Blocks[2].HeaderValue("Authorization") != "Bearer {{token}}" {
		t.Errorf("expected auth header preserved, got %+v", f.Blocks[2].Headers)
	}
}

func TestPrint_RoundTripsBody(t *testing.T) {
	f := &File{
		Config: map[string]any{"env": "stage"},
		Blocks: []Block{
			{Kind: KindRequest, Line: "GET /widgets", Body: ""},
			{Kind: KindResponse, Line: "200", Outcome: "ok", Body: "line1\nline2"},
		},
	}
	out, err := Print(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse failed: %v\noutput:\n%s", err, out)
	}
	if reparsed.Blocks[1].Body != "line1\nline2" {
		t.Errorf("body not preserved across round-trip: %q", reparsed.Blocks[1].Body)
	}
	if reparsed.Blocks[1].Outcome != "ok" {
		t.Errorf("outcome not preserved: %q", reparsed.Blocks[1].Outcome)
	}
}
