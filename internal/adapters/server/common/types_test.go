package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/hylla/kanfile/internal/app"
)

// TestSplitActor verifies actor extraction leaves the caller's map untouched.
func TestSplitActor(t *testing.T) {
	input := map[string]any{"op": "add task", "title": "x", "actor": " ada "}
	rest, actor := SplitActor(input)
	if actor != "ada" {
		t.Fatalf("actor = %q, want ada", actor)
	}
	if _, ok := rest.(map[string]any)["actor"]; ok {
		t.Fatalf("rest = %#v, want actor removed", rest)
	}
	if _, ok := input["actor"]; !ok {
		t.Fatal("input map was modified")
	}

	list := []any{map[string]any{"actor": "ada"}}
	if got, actor := SplitActor(list); actor != "" || len(got.([]any)) != 1 {
		t.Fatalf("SplitActor(list) = %#v, %q", got, actor)
	}
}

// TestMapErrorKind verifies the status table for every error kind.
func TestMapErrorKind(t *testing.T) {
	cases := map[app.ErrorKind]int{
		app.KindParse:       http.StatusBadRequest,
		app.KindValidation:  http.StatusBadRequest,
		app.KindNotFound:    http.StatusNotFound,
		app.KindCycle:       http.StatusConflict,
		app.KindConflict:    http.StatusConflict,
		app.KindLockBusy:    http.StatusServiceUnavailable,
		app.KindLockTimeout: http.StatusServiceUnavailable,
		app.KindIO:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got, code := MapErrorKind(kind); got != want || code != string(kind) {
			t.Fatalf("MapErrorKind(%s) = %d, %s; want %d", kind, got, code, want)
		}
	}
	if status, code := MapError(fmt.Errorf("decode: %w", ErrInvalidRequest)); status != http.StatusBadRequest || code != "invalid_request" {
		t.Fatalf("MapError(invalid) = %d, %s", status, code)
	}
	if status, _ := MapError(errors.Join(app.ErrLockTimeout, errors.New("busy"))); status != http.StatusServiceUnavailable {
		t.Fatalf("MapError(lock timeout) = %d", status)
	}
}

// TestResponseStatus verifies the first failure decides the status.
func TestResponseStatus(t *testing.T) {
	ok := app.Response{Results: []app.OpResult{{OK: true}}}
	if got := ResponseStatus(ok); got != http.StatusOK {
		t.Fatalf("ResponseStatus(ok) = %d", got)
	}
	failed := app.Response{Batch: true, Results: []app.OpResult{
		{OK: true},
		{Error: &app.ErrorBody{Kind: app.KindCycle, Message: "cycle"}},
	}}
	if got := ResponseStatus(failed); got != http.StatusConflict {
		t.Fatalf("ResponseStatus(failed) = %d, want 409", got)
	}
}
