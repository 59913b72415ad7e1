package filestore

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/hylla/kanfile/internal/app"
	"github.com/hylla/kanfile/internal/domain"
)

func newFileService(t *testing.T, store *Store, retry app.RetryPolicy) *app.Service {
	t.Helper()
	todo, _ := domain.NewColumn("", "To Do", 0, 0)
	done, _ := domain.NewColumn("", "Done", 1, 0)
	return app.NewService(store, nil, nil, app.ServiceConfig{
		Retry:    retry,
		Defaults: app.BoardDefaults{Name: "Files", Columns: []domain.Column{todo, done}},
	})
}

// TestServiceOverFiles runs a batch end to end against real files.
func TestServiceOverFiles(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	svc := newFileService(t, store, app.DefaultRetryPolicy())

	resp, err := svc.Execute(ctx, []any{
		map[string]any{"op": "init board"},
		map[string]any{"op": "add task", "title": "A"},
		map[string]any{"op": "add task", "title": "B", "depends_on": []any{"$1"}},
		map[string]any{"op": "get task", "id": "$2"},
	}, "ada")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if failed, ok := resp.Failed(); ok {
		t.Fatalf("batch failed: %+v", failed.Error)
	}
	a := resp.Results[1].Data.(domain.Task)
	view := resp.Results[3].Data.(app.TaskView)
	if !slices.Equal(view.DependsOn, []domain.TaskID{a.ID}) || view.Ready {
		t.Fatalf("B = %+v, want blocked by %s", view, a.ID)
	}
	if view.History == nil || view.CreatedBy != "ada" {
		t.Fatalf("B history = %+v, want created by ada", view.History)
	}

	activity, err := store.ReadActivity(ctx, 0)
	if err != nil {
		t.Fatalf("ReadActivity() error = %v", err)
	}
	if len(activity) != 3 {
		t.Fatalf("activity = %d entries, want 3 mutations", len(activity))
	}
}

// TestServiceLockTimeoutAcrossStores holds the lock from a second store and
// checks the service gives up within its retry budget.
func TestServiceLockTimeoutAcrossStores(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	other, err := Open(store.Root())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	guard, err := other.Lock(ctx)
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	svc := newFileService(t, store, app.RetryPolicy{
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		MaxAttempts: 4,
		MaxElapsed:  500 * time.Millisecond,
	})
	started := time.Now()
	resp, err := svc.Execute(ctx, map[string]any{"op": "init board"}, "")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	failed, ok := resp.Failed()
	if !ok || !errors.Is(failed.Err(), app.ErrLockTimeout) {
		t.Fatalf("Execute() = %+v, want lock timeout", resp.Results)
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("gave up after %s, want within the retry budget", elapsed)
	}

	if err := guard.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	resp, err = svc.Execute(ctx, map[string]any{"op": "init board"}, "")
	if err != nil {
		t.Fatalf("Execute() after release error = %v", err)
	}
	if failed, ok := resp.Failed(); ok {
		t.Fatalf("init board after release failed: %+v", failed.Error)
	}
}
