package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/rehearsal/internal/adapters/repository"
	"github.com/okian/rehearsal/internal/domain/types"
)

// OptimalTimesDependencies defines the read and refresh operations for a group.
type OptimalTimesDependencies interface {
	OptimalTimes(ctx context.Context, requesterID, groupID string) (types.OptimalTimes, error)
	RequestRefresh(ctx context.Context, requesterID, groupID string) error
}

// OptimalTimesHandler serves a group's ranked rehearsal windows.
type OptimalTimesHandler struct {
	deps OptimalTimesDependencies
	fail failFunc
}

// NewOptimalTimesHandler creates a new optimal times handler.
func NewOptimalTimesHandler(deps OptimalTimesDependencies, fail failFunc) *OptimalTimesHandler {
	return &OptimalTimesHandler{deps: deps, fail: fail}
}

// HandleGet handles GET /groups/{groupID}/optimal-times requests.
func (h *OptimalTimesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_optimal_times"
	groupID, err := pathID(r, "groupID")
	if err != nil {
		h.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	requester, _ := UserIDFrom(r.Context())

	out, err := h.deps.OptimalTimes(r.Context(), requester, groupID)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type refreshResponse struct {
	Status  string `json:"status"`
	GroupID string `json:"groupId"`
}

// HandleRefresh handles POST /groups/{groupID}/optimal-times/refresh requests.
func (h *OptimalTimesHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.refresh_optimal_times"
	groupID, err := pathID(r, "groupID")
	if err != nil {
		h.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	requester, _ := UserIDFrom(r.Context())

	if err := h.deps.RequestRefresh(r.Context(), requester, groupID); err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, refreshResponse{Status: "accepted", GroupID: groupID})
}

// MembersDependencies defines the group membership operations.
type MembersDependencies interface {
	JoinGroup(ctx context.Context, requesterID, groupID, userID string) error
}

// MembersHandler handles group membership requests.
type MembersHandler struct {
	deps MembersDependencies
	fail failFunc
}

// NewMembersHandler creates a new members handler.
func NewMembersHandler(deps MembersDependencies, fail failFunc) *MembersHandler {
	return &MembersHandler{deps: deps, fail: fail}
}

// HandleJoin handles PUT /groups/{groupID}/members/{userID} requests.
func (h *MembersHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	const op = "api.join_group"
	groupID, err := pathID(r, "groupID")
	if err != nil {
		h.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		h.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	requester, _ := UserIDFrom(r.Context())

	if err := h.deps.JoinGroup(r.Context(), requester, groupID, userID); err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathID returns a non-blank path parameter.
func pathID(r *http.Request, name string) (string, error) {
	id := strings.TrimSpace(r.PathValue(name))
	if id == "" {
		return "", NewKind("api.path", ErrBadRequest)
	}
	return repository.CanonicalID(id), nil
}
