package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitDestination commits the export to a file in a local clone and pushes
// it to origin.
type GitDestination struct {
	repo   string
	file   string
	branch string
}

// NewGitDestination creates a git destination. repo must be an existing
// clone with an origin remote; file is relative to it.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{repo: repo, file: file, branch: branch}
}

// Name returns the repo and file the export is written to.
func (d *GitDestination) Name() string {
	return "git:" + filepath.Join(d.repo, d.file)
}

// Write commits data unless the file already holds an export with the same
// digest, then pushes.
func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	if err := d.update(ctx); err != nil {
		return err
	}

	path := filepath.Join(d.repo, d.file)
	digest := ExportDigest(data)
	if current, err := os.ReadFile(path); err == nil && digest != "" && ExportDigest(current) == digest {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", d.file, err)
	}

	if err := d.git(ctx, "add", d.file); err != nil {
		return err
	}
	if err := d.git(ctx, "diff", "--cached", "--quiet"); err == nil {
		return nil
	}

	msg := "cms: update project config export"
	if len(digest) >= 12 {
		msg += " (" + digest[:12] + ")"
	}
	if err := d.git(ctx, "commit", "-m", msg); err != nil {
		return err
	}
	return d.git(ctx, "push", "origin", d.branch)
}

// Read pulls the branch and returns the committed export.
func (d *GitDestination) Read(ctx context.Context) ([]byte, error) {
	if err := d.update(ctx); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(d.repo, d.file))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.file, err)
	}
	return data, nil
}

// update checks out the branch and fast-forwards it. A failed pull is
// ignored since the remote may not have the branch yet.
func (d *GitDestination) update(ctx context.Context) error {
	if err := d.git(ctx, "checkout", d.branch); err != nil {
		return err
	}
	_ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)
	return nil
}

// git runs a git subcommand in the clone. Failures carry git's output.
func (d *GitDestination) git(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if msg := strings.TrimSpace(string(out)); msg != "" && errors.As(err, &exitErr) {
		return fmt.Errorf("git %s: %s", args[0], msg)
	}
	return fmt.Errorf("git %s: %w", args[0], err)
}
