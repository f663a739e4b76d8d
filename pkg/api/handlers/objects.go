package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/blobsweep/pkg/gc"
	"github.com/marmos91/blobsweep/pkg/objectstore"
	"github.com/marmos91/blobsweep/pkg/reference"
)

// ObjectHandler deletes single objects on demand.
type ObjectHandler struct {
	objects   objectstore.Deleter
	refs      reference.Store
	records   reference.ReadWriter
	namespace string
}

// NewObjectHandler creates the handler. refs is consulted before every
// delete. records may be nil, in which case record deletion answers 501.
func NewObjectHandler(objects objectstore.Deleter, refs reference.Store, records reference.ReadWriter, namespace string) *ObjectHandler {
	return &ObjectHandler{objects: objects, refs: refs, records: records, namespace: namespace}
}

// Forget handles DELETE /api/v1/objects/*. The wildcard is the full object
// key. Deleting an absent object succeeds; a key that a record still
// references is refused with 409.
func (h *ObjectHandler) Forget(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if key == "" {
		BadRequest(w, "object key is required")
		return
	}

	err := gc.Forget(r.Context(), h.refs, h.objects, h.namespace, key)
	var delErr *gc.DeleteError
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, gc.ErrOutsideNamespace):
		BadRequest(w, err.Error())
	case errors.Is(err, gc.ErrStillReferenced):
		Conflict(w, err.Error())
	case errors.As(err, &delErr):
		BadGateway(w, err.Error())
	default:
		InternalServerError(w, err.Error())
	}
}

// ForgetRecord handles DELETE /api/v1/scopes/{scope}/records/{id}: the
// record is removed, then its object unless another record still
// references it.
func (h *ObjectHandler) ForgetRecord(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		WriteProblem(w, http.StatusNotImplemented, "Not Implemented", "reference store is read-only")
		return
	}

	scope := reference.Scope(chi.URLParam(r, "scope"))
	id := chi.URLParam(r, "id")

	key, err := gc.ForgetRecord(r.Context(), h.records, h.objects, h.namespace, scope, id)
	switch {
	case errors.Is(err, reference.ErrRecordNotFound), errors.Is(err, reference.ErrScopeNotFound):
		NotFound(w, err.Error())
		return
	case errors.Is(err, gc.ErrStillReferenced):
		WriteJSON(w, http.StatusOK, map[string]string{"object_key": key, "object": "kept", "reason": err.Error()})
		return
	case key != "" && err != nil:
		// The record is gone; the object will be collected by the next pass.
		WriteJSON(w, http.StatusAccepted, map[string]string{"object_key": key, "error": err.Error()})
		return
	case err != nil:
		InternalServerError(w, err.Error())
		return
	}
	outcome := "deleted"
	if key == "" {
		outcome = "none"
	}
	WriteJSON(w, http.StatusOK, map[string]string{"object_key": key, "object": outcome})
}
