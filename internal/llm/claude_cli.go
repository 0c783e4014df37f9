package llm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ClaudeCLI calls the Claude CLI (`claude -p`) as a subprocess.
type ClaudeCLI struct {
	model   string
	timeout time.Duration
}

// NewClaudeCLI creates a new Claude CLI client.
func NewClaudeCLI(model string) *ClaudeCLI {
	return &ClaudeCLI{
		model:   model,
		timeout: 120 * time.Second,
	}
}

// Complete pipes the prompt into `claude -p` and returns its stdout.
func (c *ClaudeCLI) Complete(ctx context.Context, r Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "claude", c.args(r)...)
	cmd.Stdin = strings.NewReader(r.Prompt)

	// Strip CLAUDE_* env vars so the child session does not fire our hooks
	cmd.Env = filterEnv(os.Environ())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("claude cli: %w (stderr: %s)", err, stderr.String())
	}

	return &Response{
		Content:  strings.TrimSpace(stdout.String()),
		Provider: "claude-cli",
	}, nil
}

func (c *ClaudeCLI) args(r Request) []string {
	args := []string{"-p", "--model", c.model, "--max-turns", "1"}
	if r.System != "" {
		args = append(args, "--system-prompt", r.System)
	}
	return args
}

// filterEnv removes CLAUDE_* environment variables to prevent recursive hooks.
func filterEnv(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, "CLAUDE_") {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
