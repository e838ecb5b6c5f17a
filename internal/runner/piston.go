package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/scaffyhq/scaffy/internal/domain"
)

// PistonExecutor runs code through a Piston API instance. The public
// instance at emkc.org works for development; production should point at
// a self-hosted one.
type PistonExecutor struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// PistonConfig holds configuration for the Piston executor.
type PistonConfig struct {
	BaseURL string        // default: https://emkc.org/api/v2/piston
	Timeout time.Duration // per-run timeout, default 10s
	Logger  *slog.Logger
}

// NewPistonExecutor creates a Piston-backed executor.
func NewPistonExecutor(cfg PistonConfig) *PistonExecutor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://emkc.org/api/v2/piston"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &PistonExecutor{
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		// Buffer past the run timeout so Piston's own timeout result
		// reaches us instead of the transport cutting the call.
		httpClient: &http.Client{Timeout: cfg.Timeout + 5*time.Second},
		logger:     cfg.Logger,
	}
}

type pistonRequest struct {
	Language   string       `json:"language"`
	Version    string       `json:"version"`
	Files      []pistonFile `json:"files"`
	Stdin      string       `json:"stdin"`
	RunTimeout int64        `json:"run_timeout"` // milliseconds
}

type pistonFile struct {
	Content string `json:"content"`
}

type pistonResponse struct {
	Run struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
		Code   *int   `json:"code"`
	} `json:"run"`
}

func (e *PistonExecutor) Run(ctx context.Context, sub domain.Submission) (*domain.Execution, error) {
	lang, err := mapLanguage(sub.Language)
	if err != nil {
		return nil, err
	}

	stdin := sub.Stdin
	if stdin == "" {
		stdin = defaultStdin
	}

	payload := pistonRequest{
		Language:   lang,
		Version:    "*",
		Files:      []pistonFile{{Content: sub.Code}},
		Stdin:      stdin,
		RunTimeout: e.timeout.Milliseconds(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal piston request: %w", err)
	}

	e.logger.Info("executing code via piston", "language", lang, "code_bytes", len(sub.Code))

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create piston request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &domain.Execution{
				Success:       false,
				Error:         fmt.Sprintf("Execution timed out after %s. Your code might have an infinite loop.", e.timeout),
				ExitCode:      -1,
				ExecutionTime: fmt.Sprintf("> %s", e.timeout),
			}, nil
		}
		return nil, fmt.Errorf("piston request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		e.logger.Error("piston API error", "status", resp.StatusCode, "body", string(bodyBytes))
		return &domain.Execution{
			Success:       false,
			Error:         fmt.Sprintf("Code execution service error: %d. Please try again later.", resp.StatusCode),
			ExitCode:      -1,
			ExecutionTime: "error",
		}, nil
	}

	var result pistonResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode piston response: %w", err)
	}

	stdout := truncateOutput(result.Run.Stdout)
	stderr := truncateOutput(result.Run.Stderr)

	exitCode := 0
	switch {
	case result.Run.Code != nil:
		exitCode = *result.Run.Code
	case stderr != "":
		exitCode = 1
	}

	success := exitCode == 0 && stderr == ""
	e.logger.Info("execution completed", "success", success, "exit_code", exitCode)

	return &domain.Execution{
		Success:       success,
		Output:        stdout,
		Error:         stderr,
		ExitCode:      exitCode,
		ExecutionTime: time.Since(start).Round(10 * time.Millisecond).String(),
	}, nil
}
