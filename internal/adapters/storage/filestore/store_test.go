package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hylla/kanfile/internal/app"
	"github.com/hylla/kanfile/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), ".kanfile"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return store
}

func TestOpenCreatesLayout(t *testing.T) {
	store := openTestStore(t)
	for _, dir := range []string{tasksDir, actorsDir, tagsDir, activityDir} {
		info, err := os.Stat(filepath.Join(store.Root(), dir))
		if err != nil || !info.IsDir() {
			t.Fatalf("Stat(%s) = %v, %v; want directory", dir, info, err)
		}
	}
	if _, err := Open("  "); err == nil {
		t.Fatal("Open(blank) error = nil, want error")
	}
}

func TestBoardRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	exists, err := store.BoardExists(ctx)
	if err != nil || exists {
		t.Fatalf("BoardExists() = %v, %v; want false", exists, err)
	}
	if _, err := store.ReadBoard(ctx); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("ReadBoard() error = %v, want ErrNotFound", err)
	}

	todo, _ := domain.NewColumn("", "To Do", 0, 0)
	done, _ := domain.NewColumn("", "Done", 1, 3)
	board, err := domain.NewBoard("Roadmap", "", []domain.Column{todo, done})
	if err != nil {
		t.Fatalf("NewBoard() error = %v", err)
	}
	if err := store.WriteBoard(ctx, board); err != nil {
		t.Fatalf("WriteBoard() error = %v", err)
	}
	got, err := store.ReadBoard(ctx)
	if err != nil {
		t.Fatalf("ReadBoard() error = %v", err)
	}
	if got.Name != "Roadmap" || len(got.Columns) != 2 || got.Columns[1].WIPLimit != 3 {
		t.Fatalf("ReadBoard() = %+v", got)
	}
	if exists, _ := store.BoardExists(ctx); !exists {
		t.Fatal("BoardExists() = false after write")
	}
}

func TestTaskCRUD(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for _, id := range []string{"T2", "T1"} {
		task, err := domain.NewTask(domain.TaskInput{
			ID:       domain.TaskID(id),
			Title:    "task " + id,
			Position: domain.Position{Column: "todo", Ordinal: domain.FirstOrdinal()},
		})
		if err != nil {
			t.Fatalf("NewTask() error = %v", err)
		}
		if err := store.WriteTask(ctx, task); err != nil {
			t.Fatalf("WriteTask() error = %v", err)
		}
	}

	tasks, err := store.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "T1" || tasks[1].ID != "T2" {
		t.Fatalf("ListTasks() = %+v, want T1, T2", tasks)
	}
	if tasks[0].Comments == nil || tasks[0].DependsOn == nil {
		t.Fatal("ListTasks() returned nil collections")
	}

	if err := store.DeleteTask(ctx, "T1"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, err := store.ReadTask(ctx, "T1"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("ReadTask(deleted) error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteTask(ctx, "T1"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("DeleteTask(deleted) error = %v, want ErrNotFound", err)
	}
	if _, err := store.ReadTask(ctx, "../escape"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("ReadTask(unsafe) error = %v, want ErrNotFound", err)
	}
}

func TestActorAndTagFiles(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	agent, err := domain.NewActor(domain.ActorKindAgent, "A1", "planner")
	if err != nil {
		t.Fatalf("NewActor() error = %v", err)
	}
	if err := store.WriteActor(ctx, agent); err != nil {
		t.Fatalf("WriteActor() error = %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(store.Root(), actorsDir, "A1.json"))
	if err != nil {
		t.Fatalf("ReadFile(actor) error = %v", err)
	}
	if want := `"kind": "agent"`; !strings.Contains(string(raw), want) {
		t.Fatalf("actor file = %s, want %s", raw, want)
	}
	got, err := store.ReadActor(ctx, "A1")
	if err != nil {
		t.Fatalf("ReadActor() error = %v", err)
	}
	if _, ok := got.(domain.Agent); !ok || got.ActorName() != "planner" {
		t.Fatalf("ReadActor() = %#v, want agent planner", got)
	}

	tag, _ := domain.NewTag("", "Needs Review", "#ff0")
	if err := store.WriteTag(ctx, tag); err != nil {
		t.Fatalf("WriteTag() error = %v", err)
	}
	tags, err := store.ListTags(ctx)
	if err != nil || len(tags) != 1 || tags[0].ID != "needs-review" {
		t.Fatalf("ListTags() = %+v, %v", tags, err)
	}
	if err := store.DeleteTag(ctx, tag.ID); err != nil {
		t.Fatalf("DeleteTag() error = %v", err)
	}
	if err := store.DeleteActor(ctx, "A1"); err != nil {
		t.Fatalf("DeleteActor() error = %v", err)
	}
	if actors, _ := store.ListActors(ctx); len(actors) != 0 {
		t.Fatalf("ListActors() = %d, want 0", len(actors))
	}
}

func TestLockContentionAcrossStores(t *testing.T) {
	ctx := context.Background()
	first := openTestStore(t)
	second, err := Open(first.Root())
	if err != nil {
		t.Fatalf("Open(second) error = %v", err)
	}

	guard, err := first.Lock(ctx)
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if _, err := second.Lock(ctx); !errors.Is(err, app.ErrLockBusy) {
		t.Fatalf("second Lock() error = %v, want ErrLockBusy", err)
	}
	if err := guard.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := guard.Release(); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}
	again, err := second.Lock(ctx)
	if err != nil {
		t.Fatalf("Lock() after release error = %v", err)
	}
	_ = again.Release()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := first.Lock(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("Lock(cancelled) error = %v, want context.Canceled", err)
	}
}

func entry(n int) domain.LogEntry {
	return domain.LogEntry{
		ID:        domain.LogEntryID(fmt.Sprintf("E%05d", n)),
		Timestamp: time.Date(2026, 1, 1, 0, 0, n%60, 0, time.UTC),
		Op:        "add task",
		Input:     map[string]any{"title": fmt.Sprintf("t%d", n)},
	}
}

func TestActivityRotation(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	total := RotateAfter*2 + 5
	for i := 0; i < total; i++ {
		if err := store.AppendActivity(ctx, entry(i)); err != nil {
			t.Fatalf("AppendActivity(%d) error = %v", i, err)
		}
	}

	for _, name := range []string{"000001.jsonl", "000002.jsonl", currentLog} {
		if _, err := os.Stat(store.activityPath(name)); err != nil {
			t.Fatalf("Stat(%s) error = %v", name, err)
		}
	}
	if n, _ := countLines(store.activityPath(currentLog)); n != 5 {
		t.Fatalf("current.jsonl lines = %d, want 5", n)
	}

	recent, err := store.ReadActivity(ctx, 10)
	if err != nil {
		t.Fatalf("ReadActivity(10) error = %v", err)
	}
	if len(recent) != 10 || recent[0].ID != entry(total-10).ID || recent[9].ID != entry(total-1).ID {
		t.Fatalf("ReadActivity(10) = %s..%s", recent[0].ID, recent[len(recent)-1].ID)
	}

	all, err := store.ReadActivity(ctx, 0)
	if err != nil {
		t.Fatalf("ReadActivity(0) error = %v", err)
	}
	if len(all) != total || all[0].ID != entry(0).ID {
		t.Fatalf("ReadActivity(0) = %d entries starting %s", len(all), all[0].ID)
	}
}

func TestEntityLogs(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	ref := domain.TaskRef("T1")

	empty, err := store.ReadEntityLog(ctx, ref)
	if err != nil || len(empty) != 0 {
		t.Fatalf("ReadEntityLog(missing) = %v, %v; want empty", empty, err)
	}
	for i := 0; i < 3; i++ {
		if err := store.AppendEntityLog(ctx, ref, entry(i)); err != nil {
			t.Fatalf("AppendEntityLog() error = %v", err)
		}
	}
	got, err := store.ReadEntityLog(ctx, ref)
	if err != nil || len(got) != 3 || got[2].ID != entry(2).ID {
		t.Fatalf("ReadEntityLog() = %+v, %v", got, err)
	}
	if err := store.AppendEntityLog(ctx, domain.TaskRef("bad/id"), entry(0)); !errors.Is(err, app.ErrValidation) {
		t.Fatalf("AppendEntityLog(bad id) error = %v, want ErrValidation", err)
	}
}

func TestReadLogSkipsTornFinalLine(t *testing.T) {
	store := openTestStore(t)
	path := filepath.Join(store.Root(), tasksDir, "T9.jsonl")
	if err := appendLine(path, entry(1)); err != nil {
		t.Fatalf("appendLine() error = %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	_, _ = f.WriteString(`{"id":"E9","op":"add`)
	_ = f.Close()

	got, err := readLog(path)
	if err != nil || len(got) != 1 {
		t.Fatalf("readLog() = %d entries, %v; want 1", len(got), err)
	}
}
