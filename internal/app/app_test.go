package app

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/cms/internal/config"
	"github.com/alfredjeanlab/cms/internal/events"
	"github.com/alfredjeanlab/cms/internal/model"
)

const projectYAML = `sites:
  site-en:
    name: English
    handle: en
    primary: true
    sortOrder: 1
sections:
  sec-news:
    name: News
    handle: news
    type: channel
    propagateEntries: true
    siteSettings:
      site-en:
        enabledByDefault: true
        hasUrls: true
        uriFormat: news/{slug}
        template: news/_entry
    entryTypes:
      et-article:
        name: Article
        handle: article
        hasTitleField: true
        titleLabel: Title
        sortOrder: 1
        fieldLayouts:
          layout-article:
            tabs: []
`

func writeProject(t *testing.T, dir, data string) string {
	t.Helper()
	path := filepath.Join(dir, "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestApplyProjectFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeProject(t, dir, projectYAML)
	a := newTestApp(t, &config.Config{ProjectFile: path})

	require.NoError(t, a.ApplyProjectFile(ctx, path))

	news, err := a.Sections.SectionByHandle(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, "sec-news", news.UID)
	types, err := a.Sections.EntryTypesBySectionID(ctx, news.ID)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "article", types[0].Handle)

	// The applied config is persisted as records.
	rec, err := a.Store.GetConfig(ctx, model.ConfigKey("sections", "sec-news"))
	require.NoError(t, err)
	var value map[string]any
	require.NoError(t, json.Unmarshal(rec.Value, &value))
	assert.Equal(t, "news", value["handle"])

	// Renaming re-derives the entries through the in-process queue.
	entry := &model.Entry{UID: "e1", SectionID: news.ID, TypeID: types[0].ID}
	require.NoError(t, a.Store.CreateEntry(ctx, entry))
	en, err := a.Sites.SiteByUID(ctx, "site-en")
	require.NoError(t, err)
	require.NoError(t, a.Store.UpsertEntrySite(ctx, &model.EntrySite{EntryID: entry.ID, SiteID: en.ID, Slug: "hello", URI: "news/hello", Enabled: true}))

	writeProject(t, dir, strings.Replace(projectYAML, "uriFormat: news/{slug}", "uriFormat: blog/{slug}", 1))
	require.NoError(t, a.ApplyProjectFile(ctx, path))

	rows, err := a.Store.ListEntrySites(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "blog/hello", rows[0].URI)
}

func TestNewLoadsPersistedConfig(t *testing.T) {
	ctx := context.Background()
	path := writeProject(t, t.TempDir(), projectYAML)
	a := newTestApp(t, &config.Config{})
	require.NoError(t, a.ApplyProjectFile(ctx, path))

	// Reloading from the records reproduces the applied tree with nothing
	// left to dispatch.
	snapshot := a.Manager.Snapshot()
	require.NoError(t, a.Manager.Load(ctx))
	assert.Equal(t, snapshot, a.Manager.Snapshot())
	assert.False(t, a.Manager.AreChangesPending("sections"))
}

func TestDrainQueueWithoutJobs(t *testing.T) {
	a := newTestApp(t, &config.Config{})
	n, err := a.DrainQueue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStartWorkerNeedsNATS(t *testing.T) {
	a := newTestApp(t, &config.Config{})
	assert.Error(t, a.StartWorker(context.Background()))
}

func TestStartSyncDisabled(t *testing.T) {
	a := newTestApp(t, &config.Config{})
	require.NoError(t, a.StartSync(context.Background()))
	assert.Nil(t, a.scheduler)
}

func TestPullConfigWithoutDestination(t *testing.T) {
	a := newTestApp(t, &config.Config{})
	_, err := a.PullConfig(context.Background())
	require.Error(t, err)
}

// gitClone returns a clone of a fresh bare repo with one commit on main.
func gitClone(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}
	run := func(dir string, args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}

	remote := t.TempDir()
	run(remote, "init", "--bare")
	work := t.TempDir()
	run(work, "clone", remote, "repo")
	repo := filepath.Join(work, "repo")
	run(repo, "config", "user.email", "cms@example.com")
	run(repo, "config", "user.name", "cms")
	run(repo, "checkout", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "README"), []byte("config\n"), 0o644))
	run(repo, "add", ".")
	run(repo, "commit", "-m", "init")
	run(repo, "push", "origin", "main")
	return repo
}

func TestSyncRoundTripThroughGit(t *testing.T) {
	ctx := context.Background()
	repo := gitClone(t)
	cfg := config.Config{
		SyncInterval:  time.Minute,
		SyncGitRepo:   repo,
		SyncGitFile:   "project.jsonl",
		SyncGitBranch: "main",
	}

	src := newTestApp(t, &cfg)
	require.NoError(t, src.ApplyProjectFile(ctx, writeProject(t, t.TempDir(), projectYAML)))
	sched, err := src.Scheduler(ctx)
	require.NoError(t, err)
	require.NotNil(t, sched)
	require.NoError(t, sched.SyncOnce(ctx))

	dst := newTestApp(t, &cfg)
	n, err := dst.PullConfig(ctx)
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.Equal(t, src.Manager.Snapshot(), dst.Manager.Snapshot())

	news, err := dst.Sections.SectionByHandle(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, "sec-news", news.UID)
}

func TestNATSEvents(t *testing.T) {
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)
	srv.Start()
	t.Cleanup(srv.Shutdown)
	require.True(t, srv.ReadyForConnections(5*time.Second))

	ctx := context.Background()
	path := writeProject(t, t.TempDir(), projectYAML)
	a := newTestApp(t, &config.Config{NATSURL: srv.ClientURL()})
	require.NoError(t, a.StartWorker(ctx))

	sub, err := events.NewNATSSubscriber(srv.ClientURL())
	require.NoError(t, err)
	defer sub.Close()
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, err := sub.Subscribe(subCtx, events.TopicSectionSaved)
	require.NoError(t, err)

	require.NoError(t, a.ApplyProjectFile(ctx, path))

	select {
	case msg := <-ch:
		assert.True(t, strings.HasPrefix(msg.ID, "evt-"), "event id %q", msg.ID)
		var ev events.SectionSaved
		require.NoError(t, msg.Decode(&ev))
		assert.Equal(t, "news", ev.Section.Handle)
		assert.True(t, ev.IsNew)
	case <-time.After(5 * time.Second):
		t.Fatal("no section saved event")
	}
}
