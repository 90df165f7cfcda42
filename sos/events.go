package sos

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"petsos/models"
)

const riderPrefixLen = 6

// appendEvent records an audit entry on c. Events are only ever appended.
func appendEvent(c *models.SOSCase, message, actor string, at time.Time) {
	c.Events = append(c.Events, models.SOSEvent{
		ID:        uuid.New(),
		Message:   message,
		Actor:     actor,
		Timestamp: at,
	})
}

func riderPrefix(id uuid.UUID) string {
	return id.String()[:riderPrefixLen]
}

func createdMessage() string { return "SOS created" }

func cancelledMessage(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "SOS cancelled"
	}
	return "SOS cancelled: " + reason
}

func assignedMessage(riderID uuid.UUID) string {
	return "Assigned to rider " + riderPrefix(riderID)
}

func declinedMessage(riderID uuid.UUID) string {
	return "Declined by rider " + riderPrefix(riderID)
}

func enRouteMessage(etaMinutes *int) string {
	if etaMinutes == nil {
		return "Rider en route (ETA —)"
	}
	return fmt.Sprintf("Rider en route (ETA %dm)", *etaMinutes)
}

func arrivedMessage() string { return "Rider arrived on scene" }

func completedMessage() string { return "Marked as completed" }

func beaconMessage(at models.Coordinate, note string) string {
	msg := fmt.Sprintf("Beacon at %.5f, %.5f", at.Latitude, at.Longitude)
	if note = strings.TrimSpace(note); note != "" {
		msg += " (" + note + ")"
	}
	return msg
}
