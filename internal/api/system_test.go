package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthzEndpoint(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.Backends != 2 {
		t.Errorf("backends = %d, want 2", body.Backends)
	}
	if body.RunsInFlight != 0 {
		t.Errorf("runs_in_flight = %d, want 0", body.RunsInFlight)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// Make a request to generate metrics.
	if r, err := http.Get(ts.URL + "/healthz"); err == nil {
		r.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/plain") && !strings.Contains(contentType, "text/openmetrics") {
		t.Errorf("Content-Type = %q, expected prometheus format", contentType)
	}

	bodyBytes, _ := io.ReadAll(resp.Body)
	body := string(bodyBytes)

	if !strings.Contains(body, "hamevo_http_requests_total") {
		t.Error("metrics output missing hamevo_http_requests_total")
	}
	for _, name := range []string{
		"hamevo_http_request_duration_seconds",
		"hamevo_http_requests_in_flight",
		"hamevo_sse_streams",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestListBackends(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/backends")
	if err != nil {
		t.Fatalf("GET /v1/backends: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body backendsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	infos := body.Backends
	if len(infos) != 2 {
		t.Fatalf("len(backends) = %d, want 2", len(infos))
	}
	if infos[0].Name != "qasm" || infos[1].Name != "statevector" {
		t.Errorf("names = %q, %q, want qasm, statevector", infos[0].Name, infos[1].Name)
	}
	if infos[0].Capabilities.Statevector {
		t.Error("qasm reports statevector capability")
	}
	if infos[0].Capabilities.Shots != 128 {
		t.Errorf("qasm shots = %d, want 128", infos[0].Capabilities.Shots)
	}
	if !infos[1].Capabilities.Statevector {
		t.Error("statevector backend does not report statevector capability")
	}
}
