package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/okian/rehearsal/internal/domain/availability"
)

// AvailabilityDependencies defines the availability write operation.
type AvailabilityDependencies interface {
	SetAvailability(ctx context.Context, requesterID, userID string, records []availability.Record) error
}

// AvailabilityHandler handles weekly availability writes.
type AvailabilityHandler struct {
	deps AvailabilityDependencies
	fail failFunc
}

// NewAvailabilityHandler creates a new availability handler.
func NewAvailabilityHandler(deps AvailabilityDependencies, fail failFunc) *AvailabilityHandler {
	return &AvailabilityHandler{deps: deps, fail: fail}
}

// availabilityRequest mirrors the OpenAPI schema for PUT /users/{userID}/availability.
type availabilityRequest struct {
	Availability []availabilityEntry `json:"availability"`
}

type availabilityEntry struct {
	Day       *int                `json:"day"`
	Start     *availability.Clock `json:"start"`
	End       *availability.Clock `json:"end"`
	Recurring *bool               `json:"recurring"`
}

// records converts the request body. Recurring defaults to true.
func (req availabilityRequest) records() ([]availability.Record, error) {
	out := make([]availability.Record, 0, len(req.Availability))
	for i, e := range req.Availability {
		switch {
		case e.Day == nil:
			return nil, fmt.Errorf("availability[%d]: missing day", i)
		case e.Start == nil:
			return nil, fmt.Errorf("availability[%d]: missing start", i)
		case e.End == nil:
			return nil, fmt.Errorf("availability[%d]: missing end", i)
		}
		day, err := availability.ParseWeekday(*e.Day)
		if err != nil {
			return nil, fmt.Errorf("availability[%d]: %w", i, err)
		}
		recurring := true
		if e.Recurring != nil {
			recurring = *e.Recurring
		}
		out = append(out, availability.Record{
			Day:       day,
			Start:     *e.Start,
			End:       *e.End,
			Recurring: recurring,
		})
	}
	return out, nil
}

// HandlePut handles PUT /users/{userID}/availability requests.
func (h *AvailabilityHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_availability"
	userID, err := pathID(r, "userID")
	if err != nil {
		h.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}

	var req availabilityRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	records, err := req.records()
	if err != nil {
		h.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	requester, _ := UserIDFrom(r.Context())

	if err := h.deps.SetAvailability(r.Context(), requester, userID, records); err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
