package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/marmos91/blobsweep/pkg/gc"
	"github.com/marmos91/blobsweep/pkg/scheduler"
)

// TriggerAPI is recorded on passes started through the API.
const TriggerAPI = "api"

// PassController is the scheduler surface the API drives.
type PassController interface {
	Trigger(trigger string) error
	LastResult() (*gc.PassResult, error)
	Running() bool
	Next() time.Time
}

// PassStatus is the body of GET /api/v1/passes/status.
type PassStatus struct {
	Running bool       `json:"running"`
	NextRun *time.Time `json:"next_run,omitempty"`
	LastID  string     `json:"last_pass_id,omitempty"`
}

// LastPass is the body of GET /api/v1/passes/last.
type LastPass struct {
	*gc.PassResult
	Error string `json:"error,omitempty"`
}

// PassHandler exposes pass control.
type PassHandler struct {
	passes PassController
}

func NewPassHandler(passes PassController) *PassHandler {
	return &PassHandler{passes: passes}
}

// Start handles POST /api/v1/passes. The pass runs in the background;
// 409 means one is already in flight.
func (h *PassHandler) Start(w http.ResponseWriter, r *http.Request) {
	err := h.passes.Trigger(TriggerAPI)
	switch {
	case errors.Is(err, scheduler.ErrPassRunning):
		Conflict(w, err.Error())
	case err != nil:
		InternalServerError(w, err.Error())
	default:
		WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

// Last handles GET /api/v1/passes/last.
func (h *PassHandler) Last(w http.ResponseWriter, r *http.Request) {
	res, err := h.passes.LastResult()
	if res == nil {
		NotFound(w, "no pass has completed yet")
		return
	}
	body := LastPass{PassResult: res}
	if err != nil {
		body.Error = err.Error()
	}
	WriteJSON(w, http.StatusOK, body)
}

// Status handles GET /api/v1/passes/status.
func (h *PassHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := PassStatus{Running: h.passes.Running()}
	if next := h.passes.Next(); !next.IsZero() {
		status.NextRun = &next
	}
	if last, _ := h.passes.LastResult(); last != nil {
		status.LastID = last.ID
	}
	WriteJSON(w, http.StatusOK, status)
}
