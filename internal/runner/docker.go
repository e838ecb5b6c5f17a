package runner

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"github.com/scaffyhq/scaffy/internal/domain"
)

// dockerRuntime describes how one language runs in a container.
type dockerRuntime struct {
	image    string
	filename string
	cmd      []string
}

// dockerRuntimes covers the interpreted languages worth running locally.
// Compiled languages go through Piston, which already carries toolchains.
var dockerRuntimes = map[string]dockerRuntime{
	"python": {
		image:    "python:3.12-alpine",
		filename: "main.py",
		cmd:      []string{"python", "/workspace/main.py"},
	},
	"javascript": {
		image:    "node:20-alpine",
		filename: "main.js",
		cmd:      []string{"node", "/workspace/main.js"},
	},
	"ruby": {
		image:    "ruby:3.3-alpine",
		filename: "main.rb",
		cmd:      []string{"ruby", "/workspace/main.rb"},
	},
}

// DockerExecutor runs each submission in a fresh, network-less container.
// The alternative to Piston for deployments that keep everything on-host.
type DockerExecutor struct {
	client   *client.Client
	memoryMB int
	cpuLimit float64
	timeout  time.Duration
	logger   *slog.Logger
}

// DockerExecutorConfig holds Docker executor configuration.
type DockerExecutorConfig struct {
	MemoryMB int           // default 256
	CPULimit float64       // default 0.5
	Timeout  time.Duration // default 10s
	Logger   *slog.Logger
}

// NewDockerExecutor creates a Docker-backed executor and verifies the
// daemon is reachable.
func NewDockerExecutor(cfg DockerExecutorConfig) (*DockerExecutor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker not reachable: %w", err)
	}

	if cfg.MemoryMB == 0 {
		cfg.MemoryMB = 256
	}
	if cfg.CPULimit == 0 {
		cfg.CPULimit = 0.5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &DockerExecutor{
		client:   cli,
		memoryMB: cfg.MemoryMB,
		cpuLimit: cfg.CPULimit,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}, nil
}

func (e *DockerExecutor) Run(ctx context.Context, sub domain.Submission) (*domain.Execution, error) {
	rt, ok := dockerRuntimes[strings.ToLower(sub.Language)]
	if !ok {
		return nil, fmt.Errorf("%w: %s (docker executor)", domain.ErrUnsupportedLanguage, sub.Language)
	}

	if err := e.ensureImage(ctx, rt.image); err != nil {
		return nil, err
	}

	containerCfg := &container.Config{
		Image:           rt.image,
		Cmd:             []string{"sh", "-c", "while true; do sleep 3600; done"},
		WorkingDir:      "/workspace",
		NetworkDisabled: true,
		OpenStdin:       false,
		Labels: map[string]string{
			"scaffy.runner": "true",
			"scaffy.lang":   sub.Language,
		},
	}
	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:   int64(e.memoryMB) * 1024 * 1024,
			NanoCPUs: int64(e.cpuLimit * 1e9),
		},
	}

	resp, err := e.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	defer func() {
		_ = e.client.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
	}()

	if err := e.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	if err := e.copyFile(ctx, resp.ID, rt.filename, sub.Code); err != nil {
		return nil, err
	}

	result, err := e.exec(ctx, resp.ID, rt.cmd)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Close closes the Docker client.
func (e *DockerExecutor) Close() error {
	return e.client.Close()
}

func (e *DockerExecutor) ensureImage(ctx context.Context, img string) error {
	if _, err := e.client.ImageInspect(ctx, img); err == nil {
		return nil
	}

	e.logger.Info("pulling runner image", "image", img)
	reader, err := e.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

func (e *DockerExecutor) copyFile(ctx context.Context, containerID, name, content string) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	header := &tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(content)),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write tar header: %w", err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		return fmt.Errorf("write tar content: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}

	return e.client.CopyToContainer(ctx, containerID, "/workspace", &buf, container.CopyToContainerOptions{})
}

func (e *DockerExecutor) exec(ctx context.Context, containerID string, cmd []string) (*domain.Execution, error) {
	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	execResp, err := e.client.ContainerExecCreate(execCtx, containerID, container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   "/workspace",
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create exec: %w", err)
	}

	start := time.Now()
	attachResp, err := e.client.ContainerExecAttach(execCtx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach exec: %w", err)
	}
	defer attachResp.Close()

	var outBuf bytes.Buffer
	_, copyErr := io.Copy(&outBuf, attachResp.Reader)
	duration := time.Since(start)

	if execCtx.Err() != nil {
		return &domain.Execution{
			Success:       false,
			Error:         fmt.Sprintf("Execution timed out after %s. Your code might have an infinite loop.", e.timeout),
			ExitCode:      -1,
			ExecutionTime: fmt.Sprintf("> %s", e.timeout),
		}, nil
	}
	if copyErr != nil {
		return nil, fmt.Errorf("read exec output: %w", copyErr)
	}

	inspectResp, err := e.client.ContainerExecInspect(execCtx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("inspect exec: %w", err)
	}

	stdout, stderr := demuxOutput(outBuf.Bytes())
	exitCode := inspectResp.ExitCode

	return &domain.Execution{
		Success:       exitCode == 0 && stderr == "",
		Output:        truncateOutput(stdout),
		Error:         truncateOutput(stderr),
		ExitCode:      exitCode,
		ExecutionTime: duration.Round(10 * time.Millisecond).String(),
	}, nil
}

// demuxOutput separates Docker's multiplexed stdout/stderr stream. Each
// frame has an 8-byte header: [type][0][0][0][size, 4 bytes big-endian],
// type 1 is stdout and 2 is stderr.
func demuxOutput(data []byte) (stdout, stderr string) {
	var outBuf, errBuf strings.Builder

	for len(data) >= 8 {
		streamType := data[0]
		size := int(data[4])<<24 | int(data[5])<<16 | int(data[6])<<8 | int(data[7])
		data = data[8:]

		if size > len(data) {
			size = len(data)
		}

		chunk := string(data[:size])
		data = data[size:]

		switch streamType {
		case 1:
			outBuf.WriteString(chunk)
		case 2:
			errBuf.WriteString(chunk)
		}
	}

	if outBuf.Len() == 0 && errBuf.Len() == 0 && len(data) > 0 {
		return string(data), ""
	}
	return outBuf.String(), errBuf.String()
}
