package runner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scaffyhq/scaffy/internal/domain"
)

func TestPistonExecutorRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/execute" {
			t.Errorf("path = %q", r.URL.Path)
		}

		var req pistonRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Language != "python3" {
			t.Errorf("language = %q, want python3", req.Language)
		}
		if req.Stdin == "" {
			t.Error("default stdin not injected")
		}

		code := 0
		json.NewEncoder(w).Encode(map[string]any{
			"run": map[string]any{"stdout": "hello\n", "stderr": "", "code": &code},
		})
	}))
	defer srv.Close()

	e := NewPistonExecutor(PistonConfig{BaseURL: srv.URL, Logger: testLogger()})
	exec, err := e.Run(context.Background(), domain.Submission{
		Code:     `print("hello")`,
		Language: "python",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !exec.Success {
		t.Errorf("Success = false: %+v", exec)
	}
	if exec.Output != "hello\n" {
		t.Errorf("Output = %q", exec.Output)
	}
}

func TestPistonExecutorStderrMeansFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No exit code in the reply; stderr alone must imply failure.
		json.NewEncoder(w).Encode(map[string]any{
			"run": map[string]any{"stdout": "", "stderr": "Traceback: NameError"},
		})
	}))
	defer srv.Close()

	e := NewPistonExecutor(PistonConfig{BaseURL: srv.URL, Logger: testLogger()})
	exec, err := e.Run(context.Background(), domain.Submission{Code: "x", Language: "python"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if exec.Success {
		t.Error("Success = true with stderr present")
	}
	if exec.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", exec.ExitCode)
	}
}

func TestPistonExecutorServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	e := NewPistonExecutor(PistonConfig{BaseURL: srv.URL, Logger: testLogger()})
	exec, err := e.Run(context.Background(), domain.Submission{Code: "x", Language: "python"})
	if err != nil {
		t.Fatalf("Run() error = %v, service errors are soft failures", err)
	}
	if exec.Success || exec.ExitCode != -1 {
		t.Errorf("exec = %+v", exec)
	}
}

func TestPistonExecutorUnsupportedLanguage(t *testing.T) {
	e := NewPistonExecutor(PistonConfig{Logger: testLogger()})
	_, err := e.Run(context.Background(), domain.Submission{Code: "x", Language: "brainfuck"})
	if !errors.Is(err, domain.ErrUnsupportedLanguage) {
		t.Fatalf("error = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestDemuxOutput(t *testing.T) {
	frame := func(streamType byte, payload string) []byte {
		n := len(payload)
		header := []byte{streamType, 0, 0, 0, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
		return append(header, payload...)
	}

	data := append(frame(1, "out line\n"), frame(2, "err line\n")...)
	stdout, stderr := demuxOutput(data)
	if stdout != "out line\n" {
		t.Errorf("stdout = %q", stdout)
	}
	if stderr != "err line\n" {
		t.Errorf("stderr = %q", stderr)
	}

	// Raw output without headers falls back to stdout.
	stdout, stderr = demuxOutput([]byte("raw"))
	if stdout != "raw" || stderr != "" {
		t.Errorf("raw demux = %q / %q", stdout, stderr)
	}
}
