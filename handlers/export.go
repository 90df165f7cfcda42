package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"petsos/models"
)

var exportHeader = []string{
	"Case ID",
	"Status",
	"Priority",
	"Incident Type",
	"Requester ID",
	"Rider ID",
	"Pet ID",
	"Pickup Latitude",
	"Pickup Longitude",
	"ETA Minutes",
	"Distance Km",
	"Event Count",
	"Last Event",
	"Created At",
	"Updated At",
	"Synced At",
}

// Export streams every case as CSV, newest first.
func (h *SOSHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	cases, err := h.svc.FetchCases(ctx)
	if err != nil {
		h.fail(w, "export", uuid.Nil, err)
		return
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("sos_cases_%s.csv", timestamp)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(exportHeader); err != nil {
		h.logger.WithError(err).Error("❌ Failed to write CSV header")
		return
	}
	for _, c := range cases {
		if err := writer.Write(exportRow(c)); err != nil {
			h.logger.WithError(err).WithField("case_id", c.ID).Error("❌ Failed to write CSV row")
			return
		}
	}

	h.logger.WithField("cases", len(cases)).Info("📊 CSV export")
}

func exportRow(c models.SOSCase) []string {
	lastEvent := ""
	if n := len(c.Events); n > 0 {
		lastEvent = c.Events[n-1].Message
	}
	return []string{
		c.ID.String(),
		string(c.Status),
		string(c.Priority),
		string(c.IncidentType),
		c.RequesterID.String(),
		optString(c.RiderID),
		optString(c.PetID),
		strconv.FormatFloat(c.Pickup.Latitude, 'f', -1, 64),
		strconv.FormatFloat(c.Pickup.Longitude, 'f', -1, 64),
		optInt(c.ETAMinutes),
		optFloat(c.DistanceKm),
		strconv.Itoa(len(c.Events)),
		lastEvent,
		c.CreatedAt.Format(time.RFC3339),
		c.UpdatedAt.Format(time.RFC3339),
		optTime(c.SyncedAt),
	}
}

func optString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func optInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func optFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func optTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
