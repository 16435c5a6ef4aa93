// Package docker runs candidate code in throwaway Docker containers, one
// warm pool per language.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/velric/velric-server/internal/apperror"
	"github.com/velric/velric-server/internal/executor"
)

// timeoutExitCode matches the exit status of coreutils timeout(1).
const timeoutExitCode = 124

var _ executor.Executor = (*Executor)(nil)

type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pools  map[string]*Pool
}

// New connects to the Docker daemon from the environment, pulls every
// runtime image and starts the pools.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	if len(cfg.Runtimes) == 0 {
		return nil, fmt.Errorf("docker: no runtimes configured")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: creating client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	for lang, rt := range cfg.Runtimes {
		logger.Info("ensuring docker image is available",
			slog.String("language", lang), slog.String("image", rt.Image))
		if err := pullImage(ctx, cli, rt.Image); err != nil {
			cli.Close()
			return nil, err
		}
	}

	host := &dockerHost{cli: cli, config: cfg}
	e := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
		pools:  make(map[string]*Pool, len(cfg.Runtimes)),
	}
	for lang, rt := range cfg.Runtimes {
		pool := NewPool(host, lang, rt.Image, cfg.PoolSize, logger)
		pool.Start()
		e.pools[lang] = pool
	}
	return e, nil
}

func pullImage(ctx context.Context, cli *client.Client, ref string) error {
	reader, err := cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("docker: pulling %s: %w", ref, err)
	}
	defer reader.Close()
	// The pull only finishes once the progress stream is drained.
	_, err = io.Copy(io.Discard, reader)
	return err
}

// Languages lists the supported language ids, sorted.
func (e *Executor) Languages() []string {
	langs := make([]string, 0, len(e.pools))
	for lang := range e.pools {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Close stops every pool and the Docker client.
func (e *Executor) Close() error {
	for _, pool := range e.pools {
		pool.Stop()
	}
	return e.cli.Close()
}

// Execute runs req.Code in a fresh container of the requested language.
// The container is removed afterwards whatever happens.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	lang := strings.ToLower(strings.TrimSpace(req.Language))
	if lang == "" {
		lang = executor.DefaultLanguage
	}
	pool, ok := e.pools[lang]
	if !ok {
		return nil, apperror.ValidationFailed("language",
			fmt.Sprintf("unsupported language %q, expected one of %s", lang, strings.Join(e.Languages(), ", ")))
	}
	rt := e.config.Runtimes[lang]

	start := time.Now()

	containerID, err := pool.GetContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("docker: waiting for %s container: %w", lang, err)
	}
	defer pool.remove(containerID)

	runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	execResp, err := e.cli.ContainerExecCreate(runCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          rt.command(req.Code),
	})
	if err != nil {
		return nil, fmt.Errorf("docker: creating exec: %w", err)
	}

	attach, err := e.cli.ContainerExecAttach(runCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("docker: attaching to exec: %w", err)
	}
	defer attach.Close()

	stdout := &cappedBuffer{max: e.config.MaxOutputBytes}
	stderr := &cappedBuffer{max: e.config.MaxOutputBytes}

	done := make(chan struct{})
	go func() {
		_, _ = stdcopy.StdCopy(stdout, stderr, attach.Reader)
		close(done)
	}()

	exitCode := 0
	select {
	case <-done:
		inspect, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err == nil {
			exitCode = inspect.ExitCode
		}
	case <-runCtx.Done():
		// Closing the hijacked connection unblocks StdCopy.
		attach.Close()
		<-done
		exitCode = timeoutExitCode
		stderr.WriteString("\nExecution timed out.\n")
	}

	e.logger.Debug("code executed",
		slog.String("language", lang),
		slog.Int("exitCode", exitCode),
		slog.Duration("duration", time.Since(start)),
	)

	return &executor.ExecutionResult{
		Language: lang,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}, nil
}

// dockerHost is the containerHost backed by the Docker API.
type dockerHost struct {
	cli    *client.Client
	config Config
}

// start runs an idle container with no network and a read-only root.
func (h *dockerHost) start(ctx context.Context, img string) (string, error) {
	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:   h.config.MemoryLimit,
			NanoCPUs: int64(h.config.CPULimit * 1e9),
		},
		ReadonlyRootfs: true,
	}

	resp, err := h.cli.ContainerCreate(ctx, &container.Config{
		Image: img,
		Cmd:   []string{"sleep", "infinity"},
		User:  "nobody",
	}, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("docker: creating container: %w", err)
	}

	if err := h.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = h.remove(ctx, resp.ID)
		return "", fmt.Errorf("docker: starting container: %w", err)
	}
	return resp.ID, nil
}

func (h *dockerHost) remove(ctx context.Context, id string) error {
	return h.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
}

// cappedBuffer keeps the first max bytes and silently drops the rest. A
// zero max means unlimited.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if c.max <= 0 {
		return c.buf.Write(p)
	}
	room := c.max - c.buf.Len()
	if room <= 0 {
		c.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		c.buf.Write(p[:room])
		c.truncated = true
		return len(p), nil
	}
	return c.buf.Write(p)
}

func (c *cappedBuffer) WriteString(s string) {
	c.buf.WriteString(s)
}

func (c *cappedBuffer) String() string {
	if c.truncated {
		return c.buf.String() + "\n[output truncated]\n"
	}
	return c.buf.String()
}
