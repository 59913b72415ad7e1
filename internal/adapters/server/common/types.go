// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hylla/kanfile/internal/app"
)

// ActorHeader carries the acting identity on HTTP requests.
const ActorHeader = "X-Kanfile-Actor"

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// OpsService is the app surface every transport drives.
type OpsService interface {
	Execute(ctx context.Context, input any, actor string) (app.Response, error)
	Vocabulary() []app.OpSpec
	Ready(ctx context.Context) error
}

var _ OpsService = (*app.Service)(nil)

// SplitActor removes a top-level string `actor` field from object input and
// returns it separately. The input map is not modified.
func SplitActor(input any) (any, string) {
	obj, ok := input.(map[string]any)
	if !ok {
		return input, ""
	}
	raw, ok := obj["actor"].(string)
	if !ok {
		return input, ""
	}
	rest := make(map[string]any, len(obj))
	for key, value := range obj {
		if key == "actor" {
			continue
		}
		rest[key] = value
	}
	return rest, strings.TrimSpace(raw)
}

// MapErrorKind returns the HTTP status and stable error code for kind.
func MapErrorKind(kind app.ErrorKind) (int, string) {
	switch kind {
	case app.KindParse, app.KindValidation:
		return http.StatusBadRequest, string(kind)
	case app.KindNotFound:
		return http.StatusNotFound, string(kind)
	case app.KindCycle, app.KindConflict:
		return http.StatusConflict, string(kind)
	case app.KindLockBusy, app.KindLockTimeout:
		return http.StatusServiceUnavailable, string(kind)
	case app.KindIO:
		return http.StatusInternalServerError, string(kind)
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// MapError classifies err for transports.
func MapError(err error) (int, string) {
	if errors.Is(err, ErrInvalidRequest) {
		return http.StatusBadRequest, "invalid_request"
	}
	return MapErrorKind(app.KindOf(err))
}

// ResponseStatus returns 200 for a fully successful response, otherwise the
// status of the first failed operation.
func ResponseStatus(resp app.Response) int {
	failed, ok := resp.Failed()
	if !ok || failed.Error == nil {
		return http.StatusOK
	}
	status, _ := MapErrorKind(failed.Error.Kind)
	return status
}
