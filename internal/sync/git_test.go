package sync

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// newClone returns a clone of a fresh bare repo with one commit on main.
func newClone(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	remote := t.TempDir()
	git(t, remote, "init", "--bare")

	work := t.TempDir()
	git(t, work, "clone", remote, "repo")
	repo := filepath.Join(work, "repo")
	git(t, repo, "config", "user.email", "cms@example.com")
	git(t, repo, "config", "user.name", "cms")
	git(t, repo, "checkout", "-b", "main")

	if err := os.WriteFile(filepath.Join(repo, "README"), []byte("config\n"), 0o644); err != nil {
		t.Fatalf("write README: %v", err)
	}
	git(t, repo, "add", ".")
	git(t, repo, "commit", "-m", "init")
	git(t, repo, "push", "origin", "main")
	return repo
}

func export(t *testing.T, keys ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), newMockSource(keys...), &buf); err != nil {
		t.Fatalf("ExportJSONL: %v", err)
	}
	return buf.Bytes()
}

func TestGitDestination_WriteRead(t *testing.T) {
	ctx := context.Background()
	repo := newClone(t)
	dest := NewGitDestination(repo, "project.jsonl", "main")

	data := export(t, "sites:en", "sections:news")
	if err := dest.Write(ctx, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := git(t, repo, "log", "-1", "--format=%s"); !strings.HasPrefix(got, "cms: update project config export (") {
		t.Errorf("commit message = %q", got)
	}

	got, err := dest.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Read = %q, want %q", got, data)
	}
}

func TestGitDestination_SameDigestDoesNotCommit(t *testing.T) {
	ctx := context.Background()
	repo := newClone(t)
	dest := NewGitDestination(repo, "project.jsonl", "main")

	if err := dest.Write(ctx, export(t, "sites:en")); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	before := git(t, repo, "rev-list", "--count", "HEAD")

	// A later export of the same records has a new timestamp only.
	if err := dest.Write(ctx, export(t, "sites:en")); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if after := git(t, repo, "rev-list", "--count", "HEAD"); after != before {
		t.Fatalf("commit count %s -> %s, want no new commit", before, after)
	}

	if err := dest.Write(ctx, export(t, "sites:en", "sites:de")); err != nil {
		t.Fatalf("third Write: %v", err)
	}
	if after := git(t, repo, "rev-list", "--count", "HEAD"); after == before {
		t.Fatal("changed records should be committed")
	}
}

func TestGitDestination_SubDirectory(t *testing.T) {
	repo := newClone(t)
	dest := NewGitDestination(repo, "env/prod/project.jsonl", "main")

	data := export(t, "fields:body")
	if err := dest.Write(context.Background(), data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(repo, "env", "prod", "project.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("content mismatch: got %q", got)
	}
	if dest.Name() != "git:"+filepath.Join(repo, "env/prod/project.jsonl") {
		t.Errorf("Name() = %q", dest.Name())
	}
}

func TestGitDestination_UnknownBranch(t *testing.T) {
	repo := newClone(t)
	dest := NewGitDestination(repo, "project.jsonl", "release")

	err := dest.Write(context.Background(), export(t))
	if err == nil || !strings.Contains(err.Error(), "git checkout") {
		t.Fatalf("Write err = %v, want a git checkout failure", err)
	}
}

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}
