// Package e2e exercises the hamevo binary over HTTP.
package e2e

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	startupTimeout = 10 * time.Second
	pollInterval   = 100 * time.Millisecond
)

// lockedBuffer is a thread-safe wrapper around bytes.Buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (lb *lockedBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.Write(p)
}

func (lb *lockedBuffer) String() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.String()
}

// serverProc holds the running server subprocess and its output.
type serverProc struct {
	cmd    *exec.Cmd
	stdout *lockedBuffer
	url    string
}

var (
	builtBinary string
	buildOnce   sync.Once
	buildErr    error
)

func getBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("e2e: skipped in short mode")
	}
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "hamevo-e2e-*")
		if err != nil {
			buildErr = err
			return
		}
		binary := filepath.Join(dir, "hamevo")
		cmd := exec.Command("go", "build", "-o", binary, "./cmd/hamevo")
		cmd.Dir = findRepoRoot(t)
		out, err := cmd.CombinedOutput()
		if err != nil {
			buildErr = fmt.Errorf("go build failed: %w\n%s", err, out)
			return
		}
		builtBinary = binary
	})
	if buildErr != nil {
		t.Fatal(buildErr)
	}
	return builtBinary
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repo root")
		}
		dir = parent
	}
}

func startServer(t *testing.T, binary string, extraEnv ...string) *serverProc {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	stdout := &lockedBuffer{}
	cmd := exec.Command(binary)
	cmd.Env = append(os.Environ(),
		"HAMEVO_CONFIG=",
		"HAMEVO_LISTEN_ADDR="+addr,
		"HAMEVO_DB_PATH="+dbPath,
		"HAMEVO_LOG_LEVEL=info",
	)
	cmd.Env = append(cmd.Env, extraEnv...)
	cmd.Stdout = stdout
	cmd.Stderr = stdout

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}

	sp := &serverProc{
		cmd:    cmd,
		stdout: stdout,
		url:    "http://" + addr,
	}

	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})

	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(sp.url + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				return sp
			}
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("server did not become ready within %v\nstdout:\n%s", startupTimeout, stdout.String())
	return nil
}

func postRun(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

// isingRun evolves |+> under X for pi/4 and measures Z, giving <Z> = 0.
const isingRun = `{"definition": {
	"operator": {"paulis": [{"label": "Z", "coeff": 1}]},
	"evolution_operator": {"paulis": [{"label": "X", "coeff": 1}]},
	"initial_state": {"kind": "uniform"},
	"evo_time": 0.7853981633974483,
	"backend": %q
}}`

func TestHealthzAndMetrics(t *testing.T) {
	sp := startServer(t, getBinary(t))

	status, _ := postRun(t, sp.url+"/v1/runs", fmt.Sprintf(isingRun, "statevector"))
	if status != http.StatusCreated {
		t.Fatalf("POST /v1/runs status = %d, want 201", status)
	}

	resp, err := http.Get(sp.url + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{
		"hamevo_http_requests_total",
		"hamevo_runs_total",
		"hamevo_run_duration_seconds",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestSyncRunLifecycle(t *testing.T) {
	sp := startServer(t, getBinary(t))

	status, run := postRun(t, sp.url+"/v1/runs", fmt.Sprintf(isingRun, "statevector"))
	if status != http.StatusCreated {
		t.Fatalf("status = %d, want 201", status)
	}
	if run["status"] != "completed" {
		t.Fatalf("run status = %v, want completed (error %v)", run["status"], run["error"])
	}
	mean, _ := run["mean_real"].(float64)
	if mean < -1e-9 || mean > 1e-9 {
		t.Errorf("mean_real = %v, want 0", mean)
	}

	resp, err := http.Get(sp.url + "/v1/runs/" + run["id"].(string))
	if err != nil {
		t.Fatalf("GET run: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET run status = %d, want 200", resp.StatusCode)
	}
}

func TestInvalidParameterRejected(t *testing.T) {
	sp := startServer(t, getBinary(t))

	body := `{"definition": {"operator": {"paulis": [{"label": "Z", "coeff": 1}]}, "evo_time": -1}}`
	status, out := postRun(t, sp.url+"/v1/runs", body)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if out["field"] != "evo_time" {
		t.Errorf("field = %v, want evo_time", out["field"])
	}
}

func TestAsyncRunStreamsDone(t *testing.T) {
	sp := startServer(t, getBinary(t), "HAMEVO_SHOTS=2048", "HAMEVO_SEED=9")

	status, run := postRun(t, sp.url+"/v1/runs/async", fmt.Sprintf(isingRun, "qasm"))
	if status != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", status)
	}
	id := run["id"].(string)

	// The run may already be finished; both paths replay every event and end
	// the stream.
	resp, err := http.Get(sp.url + "/v1/runs/" + id + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	stream, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(stream), "id: 0\ndata: circuit built:") {
		t.Errorf("stream missing first event:\n%s", stream)
	}
	if !strings.HasSuffix(string(stream), "event: done\ndata: stream complete\n\n") {
		t.Errorf("stream does not end with done event:\n%s", stream)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		r, err := http.Get(sp.url + "/v1/runs/" + id)
		if err != nil {
			t.Fatalf("GET run: %v", err)
		}
		var got map[string]any
		json.NewDecoder(r.Body).Decode(&got)
		r.Body.Close()
		if got["status"] == "completed" {
			if got["shots"] != float64(2048) {
				t.Errorf("shots = %v, want 2048", got["shots"])
			}
			return
		}
		time.Sleep(pollInterval)
	}
	t.Fatal("async run did not complete")
}

func TestStructuredJSONLogs(t *testing.T) {
	sp := startServer(t, getBinary(t))

	resp, err := http.Get(sp.url + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(sp.stdout.String(), `"msg":"request"`) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	scanner := bufio.NewScanner(strings.NewReader(sp.stdout.String()))
	found := false
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry["msg"] == "request" {
			found = true
			for _, key := range []string{"method", "path", "status", "duration_ms"} {
				if _, ok := entry[key]; !ok {
					t.Errorf("request log missing field %q", key)
				}
			}
		}
	}
	if !found {
		t.Errorf("no structured request log found\noutput:\n%s", sp.stdout.String())
	}
}
