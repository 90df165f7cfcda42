// models.go
// Defines the core data structures shared by the dispatch engine, the HTTP API and the Firestore adapter.

package models

import (
	"time"

	"github.com/google/uuid"
)

// IncidentType classifies what happened to the pet.
type IncidentType string

const (
	IncidentInjury     IncidentType = "injury"
	IncidentBreathing  IncidentType = "breathing"
	IncidentTrauma     IncidentType = "trauma"
	IncidentPoisoning  IncidentType = "poisoning"
	IncidentHeatStroke IncidentType = "heatStroke"
	IncidentTransport  IncidentType = "transport"
	IncidentOther      IncidentType = "other"
)

// Valid reports whether t is one of the known incident types.
func (t IncidentType) Valid() bool {
	switch t {
	case IncidentInjury, IncidentBreathing, IncidentTrauma, IncidentPoisoning,
		IncidentHeatStroke, IncidentTransport, IncidentOther:
		return true
	}
	return false
}

// Priority defines how urgently a rider is needed.
type Priority string

const (
	PriorityRoutine  Priority = "routine"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	return p == PriorityRoutine || p == PriorityUrgent || p == PriorityCritical
}

// CaseStatus is the lifecycle state of an SOS case.
type CaseStatus string

const (
	StatusPending            CaseStatus = "pending"
	StatusAwaitingAssignment CaseStatus = "awaitingAssignment"
	StatusAssigned           CaseStatus = "assigned"
	StatusEnRoute            CaseStatus = "enRoute"
	StatusArrived            CaseStatus = "arrived"
	StatusCompleted          CaseStatus = "completed"
	StatusCancelled          CaseStatus = "cancelled"
	StatusDeclined           CaseStatus = "declined"
)

// IsTerminal reports whether the status closes the case for guarded transitions.
func (s CaseStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s CaseStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAwaitingAssignment, StatusAssigned, StatusEnRoute,
		StatusArrived, StatusCompleted, StatusCancelled, StatusDeclined:
		return true
	}
	return false
}

// AttachmentKind is the media type of an attachment.
type AttachmentKind string

const (
	AttachmentPhoto    AttachmentKind = "photo"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentDocument AttachmentKind = "document"
)

func (k AttachmentKind) Valid() bool {
	switch k {
	case AttachmentPhoto, AttachmentVideo, AttachmentAudio, AttachmentDocument:
		return true
	}
	return false
}

// Actors recorded on audit events.
const (
	ActorOwner = "owner"
	ActorRider = "rider"
	ActorAdmin = "admin"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SOSAttachment is a media file attached to a case when it was raised.
type SOSAttachment struct {
	ID   uuid.UUID      `json:"id"`
	URL  string         `json:"url"`
	Kind AttachmentKind `json:"kind"`
}

// SOSEvent is one immutable entry of a case's audit trail.
type SOSEvent struct {
	ID        uuid.UUID `json:"id"`
	Message   string    `json:"message"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

// SOSCase is one emergency dispatch request and its full lifecycle state.
type SOSCase struct {
	// === Identity (immutable) ===
	ID          uuid.UUID  `json:"id"`
	RequesterID uuid.UUID  `json:"requester_id"`
	PetID       *uuid.UUID `json:"pet_id,omitempty"`

	// === Assignment ===
	RiderID *uuid.UUID `json:"rider_id,omitempty"` // set on accept, cleared by a matching decline
	Status  CaseStatus `json:"status"`

	// === Incident ===
	IncidentType  IncidentType    `json:"incident_type"`
	Priority      Priority        `json:"priority"`
	Pickup        Coordinate      `json:"pickup"`
	Destination   *Coordinate     `json:"destination,omitempty"`
	ContactNumber string          `json:"contact_number,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Attachments   []SOSAttachment `json:"attachments"`

	// === Tracking (opaque inputs from the rider app) ===
	ETAMinutes        *int        `json:"eta_minutes,omitempty"`
	DistanceKm        *float64    `json:"distance_km,omitempty"`
	LastKnownLocation *Coordinate `json:"last_known_location,omitempty"`

	Events []SOSEvent `json:"events"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// === Remote sync markers (set by the Firestore-backed service only) ===
	SyncedAt *time.Time `json:"synced_at,omitempty"`
	IsDirty  bool       `json:"is_dirty"`
}

// Clone returns a deep copy that shares no slices or pointers with c.
func (c SOSCase) Clone() SOSCase {
	out := c
	out.PetID = clonePtr(c.PetID)
	out.RiderID = clonePtr(c.RiderID)
	out.Destination = clonePtr(c.Destination)
	out.ETAMinutes = clonePtr(c.ETAMinutes)
	out.DistanceKm = clonePtr(c.DistanceKm)
	out.LastKnownLocation = clonePtr(c.LastKnownLocation)
	out.SyncedAt = clonePtr(c.SyncedAt)
	if c.Attachments != nil {
		out.Attachments = append([]SOSAttachment(nil), c.Attachments...)
	}
	if c.Events != nil {
		out.Events = append([]SOSEvent(nil), c.Events...)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// SOSRequest is the payload an owner submits to raise a case.
type SOSRequest struct {
	RequesterID    uuid.UUID    `json:"requester_id"`
	PetID          *uuid.UUID   `json:"pet_id,omitempty"`
	IncidentType   IncidentType `json:"incident_type"`
	Priority       Priority     `json:"priority,omitempty"` // empty means urgent
	Pickup         Coordinate   `json:"pickup"`
	Destination    *Coordinate  `json:"destination,omitempty"`
	ContactNumber  string       `json:"contact_number,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	AttachmentURLs []string     `json:"attachment_urls,omitempty"`
}
