package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"petsos/models"
	"petsos/sos"
)

// requestTimeout bounds how long a request waits for the engine to admit it.
const requestTimeout = 10 * time.Second

type SOSHandler struct {
	svc    sos.CaseService
	logger *logrus.Logger
}

func NewSOSHandler(svc sos.CaseService, logger *logrus.Logger) *SOSHandler {
	return &SOSHandler{
		svc:    svc,
		logger: logger,
	}
}

// CaseActionRequest is the body shared by the owner, rider and admin actions.
type CaseActionRequest struct {
	CaseID     uuid.UUID          `json:"case_id"`
	RiderID    uuid.UUID          `json:"rider_id,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	ETAMinutes *int               `json:"eta_minutes,omitempty"`
	DistanceKm *float64           `json:"distance_km,omitempty"`
	Location   *models.Coordinate `json:"location,omitempty"`
	Note       string             `json:"note,omitempty"`
}

// Cases lists every case on GET and raises a new one on POST.
func (h *SOSHandler) Cases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SOSHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	cases, err := h.svc.FetchCases(ctx)
	if err != nil {
		h.fail(w, "list", uuid.Nil, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cases": cases,
		"count": len(cases),
	})
}

func (h *SOSHandler) create(w http.ResponseWriter, r *http.Request) {
	var req models.SOSRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireID(w, "requester_id", req.RequesterID) {
		return
	}
	if !req.IncidentType.Valid() {
		writeError(w, "Invalid incident_type", http.StatusBadRequest)
		return
	}
	if req.Priority != "" && !req.Priority.Valid() {
		writeError(w, "Invalid priority", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	c, err := h.svc.CreateCase(ctx, req)
	if err != nil {
		h.fail(w, "create", uuid.Nil, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GetCase returns the case named by the id query parameter.
func (h *SOSHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, "Invalid or missing id", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	c, err := h.svc.FetchCase(ctx, id)
	if err != nil {
		h.fail(w, "fetch", id, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *SOSHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, false, func(ctx context.Context, req CaseActionRequest) (models.SOSCase, error) {
		return h.svc.CancelCase(ctx, req.CaseID, req.Reason)
	})
}

func (h *SOSHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, true, func(ctx context.Context, req CaseActionRequest) (models.SOSCase, error) {
		return h.svc.AcceptCase(ctx, req.CaseID, req.RiderID)
	})
}

func (h *SOSHandler) EnRoute(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, true, func(ctx context.Context, req CaseActionRequest) (models.SOSCase, error) {
		return h.svc.MarkEnRoute(ctx, req.CaseID, req.RiderID, req.ETAMinutes, req.DistanceKm)
	})
}

func (h *SOSHandler) Arrived(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, true, func(ctx context.Context, req CaseActionRequest) (models.SOSCase, error) {
		return h.svc.MarkArrived(ctx, req.CaseID, req.RiderID)
	})
}

func (h *SOSHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, false, func(ctx context.Context, req CaseActionRequest) (models.SOSCase, error) {
		return h.svc.CompleteCase(ctx, req.CaseID)
	})
}

// Decline is best-effort: it is accepted even when the case does not exist.
func (h *SOSHandler) Decline(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readAction(w, r, true)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	h.svc.DeclineCase(ctx, req.CaseID, req.RiderID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Beacon records a rider location update. Like Decline it never reports failure.
func (h *SOSHandler) Beacon(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readAction(w, r, false)
	if !ok {
		return
	}
	if req.Location == nil {
		writeError(w, "location is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	h.svc.RecordBeacon(ctx, req.CaseID, *req.Location, req.Note)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *SOSHandler) action(w http.ResponseWriter, r *http.Request, needsRider bool,
	run func(ctx context.Context, req CaseActionRequest) (models.SOSCase, error)) {
	req, ok := h.readAction(w, r, needsRider)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	c, err := run(ctx, req)
	if err != nil {
		h.fail(w, r.URL.Path, req.CaseID, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *SOSHandler) readAction(w http.ResponseWriter, r *http.Request, needsRider bool) (CaseActionRequest, bool) {
	var req CaseActionRequest
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return req, false
	}
	if !decodeBody(w, r, &req) || !requireID(w, "case_id", req.CaseID) {
		return req, false
	}
	if needsRider && !requireID(w, "rider_id", req.RiderID) {
		return req, false
	}
	return req, true
}

func (h *SOSHandler) fail(w http.ResponseWriter, op string, id uuid.UUID, err error) {
	status := statusFor(err)
	entry := h.logger.WithError(err).WithField("op", op)
	if id != uuid.Nil {
		entry = entry.WithField("case_id", id)
	}
	if status >= http.StatusInternalServerError {
		entry.Error("❌ SOS operation failed")
		writeError(w, "Internal server error", status)
		return
	}
	entry.Info("SOS operation rejected")
	writeError(w, err.Error(), status)
}
