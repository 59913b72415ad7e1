package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	charmLog "github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/hylla/kanfile/internal/app"
	"github.com/hylla/kanfile/internal/domain"
)

func sampleNotification() app.Notification {
	return app.Notification{
		Op:         "add task",
		OK:         true,
		EntryID:    "E1",
		Actor:      "ada",
		Affected:   []domain.EntityRef{domain.TaskRef("T1")},
		InstanceID: "inst-1",
		At:         "2026-03-01T00:00:00Z",
	}
}

func startRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return m, rc
}

func TestRedisPublishAndSubscribe(t *testing.T) {
	_, rc := startRedis(t)
	notifier := NewRedisWithClient(rc, "")
	if notifier.Channel() != DefaultChannel {
		t.Fatalf("Channel() = %q, want %q", notifier.Channel(), DefaultChannel)
	}

	var (
		mu  sync.Mutex
		got []app.Notification
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- notifier.Subscribe(ctx, func(n app.Notification) {
			mu.Lock()
			got = append(got, n)
			mu.Unlock()
		}, nil)
	}()
	// wait for the subscription to start
	time.Sleep(50 * time.Millisecond)

	if err := notifier.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("received %d notifications, want 1", len(got))
	}
	if got[0].Op != "add task" || got[0].Actor != "ada" || len(got[0].Affected) != 1 {
		t.Fatalf("received %+v", got[0])
	}
}

func TestRedisNotifyFailsWhenServerIsDown(t *testing.T) {
	m, rc := startRedis(t)
	notifier := NewRedisWithClient(rc, "ops")
	m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := notifier.Notify(ctx, sampleNotification()); err == nil {
		t.Fatal("Notify() error = nil, want publish failure")
	}
}

func TestNewRedisValidatesURL(t *testing.T) {
	if _, err := NewRedis(" ", "ops"); err == nil {
		t.Fatal("NewRedis(blank) error = nil, want error")
	}
	if _, err := NewRedis("http://nope", "ops"); err == nil {
		t.Fatal("NewRedis(http) error = nil, want error")
	}
	m, _ := startRedis(t)
	r, err := NewRedis("redis://"+m.Addr(), "ops")
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	if err := r.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestLogNotifierWritesEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := charmLog.NewWithOptions(&buf, charmLog.Options{
		Level:     charmLog.DebugLevel,
		Formatter: charmLog.LogfmtFormatter,
	})
	n := NewLog(logger)
	if err := n.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	failed := sampleNotification()
	failed.OK = false
	if err := n.Notify(context.Background(), failed); err != nil {
		t.Fatalf("Notify(failed) error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"operation committed", "operation failed", "inst-1", "level=warn"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output = %q, want %q", out, want)
		}
	}
}

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(context.Context, app.Notification) error { return f.err }

func TestFanoutJoinsFailures(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	err := Fanout{failingNotifier{first}, nil, NewLog(nil), failingNotifier{second}}.Notify(context.Background(), sampleNotification())
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("Fanout.Notify() error = %v, want both failures", err)
	}
	if err := (Fanout{NewLog(nil)}).Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Fanout.Notify() error = %v", err)
	}
}
