package sos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"petsos/models"
)

func newCase(req models.SOSRequest, now time.Time) models.SOSCase {
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityUrgent
	}

	attachments := make([]models.SOSAttachment, 0, len(req.AttachmentURLs))
	for _, u := range req.AttachmentURLs {
		attachments = append(attachments, models.SOSAttachment{
			ID:   uuid.New(),
			URL:  u,
			Kind: models.AttachmentPhoto,
		})
	}

	c := models.SOSCase{
		ID:            uuid.New(),
		RequesterID:   req.RequesterID,
		PetID:         req.PetID,
		IncidentType:  req.IncidentType,
		Priority:      priority,
		Pickup:        req.Pickup,
		Destination:   req.Destination,
		ContactNumber: req.ContactNumber,
		Status:        models.StatusPending,
		Notes:         req.Notes,
		Attachments:   attachments,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	c = c.Clone() // detach from the caller's pointers
	appendEvent(&c, createdMessage(), models.ActorOwner, now)
	return c
}

// CreateCase raises a new pending case on behalf of an owner.
func (s *Service) CreateCase(ctx context.Context, req models.SOSRequest) (models.SOSCase, error) {
	var (
		out   models.SOSCase
		opErr error
	)
	err := s.submit(ctx, func() {
		now := s.opts.clock()
		out, opErr = s.commit(ctx, newCase(req, now), now)
	})
	if err == nil {
		err = opErr
	}
	s.opts.recorder.ObserveOperation("create", err)
	if err != nil {
		return models.SOSCase{}, err
	}
	s.log().WithFields(logrus.Fields{
		"case_id":  out.ID,
		"priority": out.Priority,
		"incident": out.IncidentType,
	}).Info("SOS case created")
	return out, nil
}

// CancelCase moves an open case to cancelled. Closed cases fail with ErrCaseClosed.
func (s *Service) CancelCase(ctx context.Context, id uuid.UUID, reason string) (models.SOSCase, error) {
	return s.mutate(ctx, id, transition{
		op:      "cancel",
		guarded: true,
		apply: func(c *models.SOSCase, now time.Time) {
			c.Status = models.StatusCancelled
			appendEvent(c, cancelledMessage(reason), models.ActorOwner, now)
		},
	})
}

// AcceptCase assigns riderID to an open case and marks it assigned.
func (s *Service) AcceptCase(ctx context.Context, id, riderID uuid.UUID) (models.SOSCase, error) {
	return s.mutate(ctx, id, transition{
		op:      "accept",
		guarded: true,
		apply: func(c *models.SOSCase, now time.Time) {
			rider := riderID
			c.RiderID = &rider
			c.Status = models.StatusAssigned
			appendEvent(c, assignedMessage(riderID), models.ActorRider, now)
		},
	})
}

// DeclineCase releases the case when riderID holds it and always records the
// decline. It is allowed on closed cases and never reports failure.
func (s *Service) DeclineCase(ctx context.Context, id, riderID uuid.UUID) {
	_, err := s.mutate(ctx, id, transition{
		op: "decline",
		apply: func(c *models.SOSCase, now time.Time) {
			if c.RiderID != nil && *c.RiderID == riderID {
				c.RiderID = nil
				c.Status = models.StatusPending
			}
			appendEvent(c, declinedMessage(riderID), models.ActorRider, now)
		},
	})
	s.bestEffort("decline", id, err)
}

// MarkEnRoute records riderID as en route with optional ETA and distance. Closed cases are rejected.
func (s *Service) MarkEnRoute(ctx context.Context, id, riderID uuid.UUID, etaMinutes *int, distanceKm *float64) (models.SOSCase, error) {
	return s.mutate(ctx, id, transition{
		op:      "en_route",
		guarded: true,
		apply: func(c *models.SOSCase, now time.Time) {
			rider := riderID
			c.RiderID = &rider
			c.Status = models.StatusEnRoute
			c.ETAMinutes = clone(etaMinutes)
			c.DistanceKm = clone(distanceKm)
			appendEvent(c, enRouteMessage(etaMinutes), models.ActorRider, now)
		},
	})
}

// MarkArrived marks an open case arrived on scene.
func (s *Service) MarkArrived(ctx context.Context, id, riderID uuid.UUID) (models.SOSCase, error) {
	return s.mutate(ctx, id, transition{
		op:      "arrived",
		guarded: true,
		apply: func(c *models.SOSCase, now time.Time) {
			rider := riderID
			c.RiderID = &rider
			c.Status = models.StatusArrived
			appendEvent(c, arrivedMessage(), models.ActorRider, now)
		},
	})
}

// CompleteCase closes an open case as completed.
func (s *Service) CompleteCase(ctx context.Context, id uuid.UUID) (models.SOSCase, error) {
	return s.mutate(ctx, id, transition{
		op:      "complete",
		guarded: true,
		apply: func(c *models.SOSCase, now time.Time) {
			c.Status = models.StatusCompleted
			appendEvent(c, completedMessage(), models.ActorAdmin, now)
		},
	})
}

// RecordBeacon stores the rider's latest position. Closed cases still accept
// beacons so the trail stays complete; failures are only logged.
func (s *Service) RecordBeacon(ctx context.Context, id uuid.UUID, at models.Coordinate, note string) {
	_, err := s.mutate(ctx, id, transition{
		op: "beacon",
		apply: func(c *models.SOSCase, now time.Time) {
			loc := at
			c.LastKnownLocation = &loc
			appendEvent(c, beaconMessage(at, note), models.ActorRider, now)
		},
	})
	s.bestEffort("beacon", id, err)
}

func clone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
