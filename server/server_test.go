package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/launchforge/launchforge/agent"
	"github.com/launchforge/launchforge/orchestrator"
)

type echoAgent struct{}

func (echoAgent) Stream(ctx context.Context, req *agent.Request) (*agent.Run, error) {
	text := make(chan string, 2)
	steps := make(chan agent.Step)
	errc := make(chan error, 1)
	text <- "echo: "
	text <- req.Messages[len(req.Messages)-1].Content + "\n"
	close(text)
	close(steps)
	errc <- nil
	close(errc)
	return &agent.Run{Text: text, Steps: steps, Err: errc}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	driver, err := orchestrator.NewDriver(orchestrator.Config{Agent: echoAgent{}})
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	ts := httptest.NewServer(New(driver).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestTurnEndpointStreamsResponse(t *testing.T) {
	ts := newTestServer(t)

	body := `{"project_id":"p1","conversation_id":"c1","message":"hello"}`
	resp, err := http.Post(ts.URL+"/api/v1/turn", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}

	got, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(got), "echo: hello") {
		t.Errorf("body = %q", got)
	}
}

func TestTurnEndpointRejectsMissingFields(t *testing.T) {
	ts := newTestServer(t)

	cases := []string{
		`{"conversation_id":"c1","message":"hello"}`,
		`{"project_id":"p1","message":"hello"}`,
		`{"project_id":"p1","conversation_id":"c1"}`,
	}
	for i, body := range cases {
		resp, err := http.Post(ts.URL+"/api/v1/turn", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("case %d: POST: %v", i, err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("case %d: status = %d, want 400", i, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("case %d: content type = %q", i, ct)
		}
		resp.Body.Close()
	}
}

func TestTurnEndpointRejectsMalformedJSON(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/v1/turn", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTurnEndpointRequiresPost(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/turn")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	got, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(got), `"ok"`) {
		t.Errorf("body = %q", got)
	}
}

func TestTurnEndpointPassesHistory(t *testing.T) {
	ts := newTestServer(t)

	body := `{
		"project_id": "p1",
		"conversation_id": "c1",
		"message": "and now?",
		"history": [
			{"role": "user", "content": "first question"},
			{"role": "assistant", "content": "first answer"}
		]
	}`
	resp, err := http.Post(ts.URL+"/api/v1/turn", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	got, _ := io.ReadAll(resp.Body)
	// echoAgent echoes the last message, which must be the new user turn.
	if !strings.Contains(string(got), "echo: and now?") {
		t.Errorf("body = %q", got)
	}
}
