package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"petsos/models"
)

// GeoPoint is a coordinate as stored in Firestore.
type GeoPoint struct {
	Lat float64 `firestore:"lat"`
	Lng float64 `firestore:"lng"`
}

type AttachmentDocument struct {
	ID   string `firestore:"id"`
	URL  string `firestore:"url"`
	Kind string `firestore:"kind"`
}

type EventDocument struct {
	ID        string    `firestore:"id"`
	Message   string    `firestore:"message"`
	Actor     string    `firestore:"actor"`
	Timestamp time.Time `firestore:"timestamp"`
}

// CaseDocument is the sos_cases document layout. Ids are strings, enums are
// their string tags and absent optionals are written as null.
type CaseDocument struct {
	ID                string               `firestore:"id"`
	RequesterID       string               `firestore:"requester_id"`
	RiderID           *string              `firestore:"rider_id"`
	PetID             *string              `firestore:"pet_id"`
	IncidentType      string               `firestore:"incident_type"`
	Priority          string               `firestore:"priority"`
	Pickup            GeoPoint             `firestore:"pickup"`
	Destination       *GeoPoint            `firestore:"destination"`
	ContactNumber     string               `firestore:"contact_number"`
	Status            string               `firestore:"status"`
	Notes             string               `firestore:"notes"`
	Attachments       []AttachmentDocument `firestore:"attachments"`
	ETAMinutes        *int64               `firestore:"eta_minutes"`
	DistanceKm        *float64             `firestore:"distance_km"`
	LastKnownLocation *GeoPoint            `firestore:"last_known_location"`
	Events            []EventDocument      `firestore:"events"`
	CreatedAt         time.Time            `firestore:"created_at"`
	UpdatedAt         time.Time            `firestore:"updated_at"`
	SyncedAt          *time.Time           `firestore:"synced_at"`
	IsDirty           bool                 `firestore:"is_dirty"`
}

// NewCaseDocument converts a case into its stored form.
func NewCaseDocument(c models.SOSCase) CaseDocument {
	d := CaseDocument{
		ID:                c.ID.String(),
		RequesterID:       c.RequesterID.String(),
		RiderID:           idString(c.RiderID),
		PetID:             idString(c.PetID),
		IncidentType:      string(c.IncidentType),
		Priority:          string(c.Priority),
		Pickup:            toGeoPoint(c.Pickup),
		Destination:       optGeoPoint(c.Destination),
		ContactNumber:     c.ContactNumber,
		Status:            string(c.Status),
		Notes:             c.Notes,
		DistanceKm:        clonePtr(c.DistanceKm),
		LastKnownLocation: optGeoPoint(c.LastKnownLocation),
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		SyncedAt:          clonePtr(c.SyncedAt),
		IsDirty:           c.IsDirty,
	}
	if c.ETAMinutes != nil {
		eta := int64(*c.ETAMinutes)
		d.ETAMinutes = &eta
	}
	for _, a := range c.Attachments {
		d.Attachments = append(d.Attachments, AttachmentDocument{
			ID:   a.ID.String(),
			URL:  a.URL,
			Kind: string(a.Kind),
		})
	}
	for _, e := range c.Events {
		d.Events = append(d.Events, EventDocument{
			ID:        e.ID.String(),
			Message:   e.Message,
			Actor:     e.Actor,
			Timestamp: e.Timestamp,
		})
	}
	return d
}

// Model converts a stored document back into a case. It fails on malformed
// ids and unknown statuses.
func (d CaseDocument) Model() (models.SOSCase, error) {
	c := models.SOSCase{
		IncidentType:      models.IncidentType(d.IncidentType),
		Priority:          models.Priority(d.Priority),
		Pickup:            fromGeoPoint(d.Pickup),
		Destination:       optCoordinate(d.Destination),
		ContactNumber:     d.ContactNumber,
		Status:            models.CaseStatus(d.Status),
		Notes:             d.Notes,
		DistanceKm:        clonePtr(d.DistanceKm),
		LastKnownLocation: optCoordinate(d.LastKnownLocation),
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		SyncedAt:          clonePtr(d.SyncedAt),
		IsDirty:           d.IsDirty,
	}
	if !c.Status.Valid() {
		return models.SOSCase{}, fmt.Errorf("decode field status: unknown status %q", d.Status)
	}

	var err error
	if c.ID, err = parseID("id", d.ID); err != nil {
		return models.SOSCase{}, err
	}
	if c.RequesterID, err = parseID("requester_id", d.RequesterID); err != nil {
		return models.SOSCase{}, err
	}
	if c.RiderID, err = parseOptID("rider_id", d.RiderID); err != nil {
		return models.SOSCase{}, err
	}
	if c.PetID, err = parseOptID("pet_id", d.PetID); err != nil {
		return models.SOSCase{}, err
	}
	if d.ETAMinutes != nil {
		eta := int(*d.ETAMinutes)
		c.ETAMinutes = &eta
	}

	for i, a := range d.Attachments {
		id, err := parseID(fmt.Sprintf("attachments[%d].id", i), a.ID)
		if err != nil {
			return models.SOSCase{}, err
		}
		c.Attachments = append(c.Attachments, models.SOSAttachment{
			ID:   id,
			URL:  a.URL,
			Kind: models.AttachmentKind(a.Kind),
		})
	}
	for i, e := range d.Events {
		id, err := parseID(fmt.Sprintf("events[%d].id", i), e.ID)
		if err != nil {
			return models.SOSCase{}, err
		}
		c.Events = append(c.Events, models.SOSEvent{
			ID:        id,
			Message:   e.Message,
			Actor:     e.Actor,
			Timestamp: e.Timestamp,
		})
	}
	return c, nil
}

func parseID(field, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("decode field %s: missing id", field)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode field %s: %w", field, err)
	}
	return id, nil
}

func parseOptID(field string, s *string) (*uuid.UUID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := parseID(field, *s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func idString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func toGeoPoint(c models.Coordinate) GeoPoint {
	return GeoPoint{Lat: c.Latitude, Lng: c.Longitude}
}

func fromGeoPoint(p GeoPoint) models.Coordinate {
	return models.Coordinate{Latitude: p.Lat, Longitude: p.Lng}
}

func optGeoPoint(c *models.Coordinate) *GeoPoint {
	if c == nil {
		return nil
	}
	p := toGeoPoint(*c)
	return &p
}

func optCoordinate(p *GeoPoint) *models.Coordinate {
	if p == nil {
		return nil
	}
	c := fromGeoPoint(*p)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
