package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/platform/auth"
	"github.com/carebridge/carebridge/internal/platform/calendar"
	"github.com/carebridge/carebridge/internal/platform/websocket"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrForbidden           = errors.New("appointment belongs to another user")
	ErrInvalidInput        = errors.New("invalid input")
)

var validStatuses = map[string]bool{
	StatusScheduled: true, StatusCompleted: true,
	StatusCancelled: true, StatusNoShow: true,
}

// Allowed status transitions. Terminal states have no outgoing edges.
var statusTransitions = map[string]map[string]bool{
	StatusScheduled: {StatusCompleted: true, StatusCancelled: true, StatusNoShow: true},
}

type Service struct {
	repo      Repository
	doctors   DoctorSource
	cal       calendar.Client
	publisher websocket.EventPublisher
	logger    zerolog.Logger
}

func NewService(repo Repository, doctors DoctorSource, cal calendar.Client, publisher websocket.EventPublisher, logger zerolog.Logger) *Service {
	if cal == nil {
		cal = calendar.NopClient{}
	}
	return &Service{repo: repo, doctors: doctors, cal: cal, publisher: publisher, logger: logger}
}

// BookInput is what a patient submits to book an appointment.
type BookInput struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	StartsAt  time.Time
	EndsAt    time.Time
	Reason    string
}

// Book creates an appointment and then syncs it to the external calendar.
// The sync is best effort: a calendar failure is logged and the booking
// still succeeds without a calendar_event_id.
func (s *Service) Book(ctx context.Context, in BookInput) (*Appointment, error) {
	if in.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	if in.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctor_id is required", ErrInvalidInput)
	}
	if in.StartsAt.IsZero() {
		return nil, fmt.Errorf("%w: starts_at is required", ErrInvalidInput)
	}
	if in.EndsAt.IsZero() {
		in.EndsAt = in.StartsAt.Add(30 * time.Minute)
	}
	if !in.EndsAt.After(in.StartsAt) {
		return nil, fmt.Errorf("%w: ends_at must be after starts_at", ErrInvalidInput)
	}
	if in.StartsAt.Before(time.Now()) {
		return nil, fmt.Errorf("%w: starts_at must be in the future", ErrInvalidInput)
	}

	known, err := s.doctors.DoctorExists(ctx, in.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("verify doctor: %w", err)
	}
	if !known {
		return nil, ErrDoctorNotFound
	}

	a := &Appointment{
		PatientID: in.PatientID,
		DoctorID:  in.DoctorID,
		StartsAt:  in.StartsAt,
		EndsAt:    in.EndsAt,
		Reason:    in.Reason,
		Status:    StatusScheduled,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.syncCalendar(ctx, a)
	s.notify(ctx, websocket.EventAppointmentBooked, a)

	return a, nil
}

func (s *Service) syncCalendar(ctx context.Context, a *Appointment) {
	calCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	eventID, err := s.cal.CreateEvent(calCtx, calendar.Event{
		Summary:     "Appointment: " + a.Reason,
		Description: fmt.Sprintf("Appointment %s", a.ID),
		StartsAt:    a.StartsAt,
		EndsAt:      a.EndsAt,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).
			Msg("calendar sync failed, booking kept")
		return
	}
	if eventID == "" {
		return
	}

	a.CalendarEventID = &eventID
	if err := s.repo.Update(ctx, a); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).
			Msg("failed to store calendar event id")
	}
}

func (s *Service) notify(ctx context.Context, eventType string, a *Appointment) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		return
	}
	for _, userID := range []uuid.UUID{a.PatientID, a.DoctorID} {
		_ = s.publisher.Publish(ctx, websocket.Event{
			Type:       eventType,
			Topic:      websocket.UserTopic(userID.String()),
			ResourceID: a.ID.String(),
			Timestamp:  time.Now().UTC(),
			Data:       data,
		})
	}
}

// Get returns an appointment after checking the caller can see it. Patients
// and doctors only see their own bookings; admins see everything.
func (s *Service) Get(ctx context.Context, id, callerID uuid.UUID, callerRole string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	if !s.canAccess(a, callerID, callerRole) {
		return nil, ErrForbidden
	}
	return a, nil
}

func (s *Service) canAccess(a *Appointment, callerID uuid.UUID, callerRole string) bool {
	switch callerRole {
	case auth.RoleAdmin:
		return true
	case auth.RoleDoctor:
		return a.DoctorID == callerID
	default:
		return a.PatientID == callerID
	}
}

// ListForCaller returns the caller's appointments: bookings they made as a
// patient, or their schedule as a doctor.
func (s *Service) ListForCaller(ctx context.Context, callerID uuid.UUID, callerRole string, limit, offset int) ([]*Appointment, int, error) {
	if callerRole == auth.RoleDoctor {
		return s.repo.ListByDoctor(ctx, callerID, limit, offset)
	}
	return s.repo.ListByPatient(ctx, callerID, limit, offset)
}

// UpdateStatus moves an appointment through its lifecycle. Only transitions
// out of "scheduled" are allowed; completed and cancelled are terminal.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string, callerID uuid.UUID, callerRole string) (*Appointment, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("%w: invalid status %s", ErrInvalidInput, status)
	}

	a, err := s.Get(ctx, id, callerID, callerRole)
	if err != nil {
		return nil, err
	}

	if !statusTransitions[a.Status][status] {
		return nil, fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidInput, a.Status, status)
	}

	a.Status = status
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	if status == StatusCancelled && a.CalendarEventID != nil {
		calCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.cal.DeleteEvent(calCtx, *a.CalendarEventID); err != nil {
			s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).
				Msg("calendar event removal failed")
		}
	}

	s.notify(ctx, websocket.EventAppointmentUpdated, a)
	return a, nil
}

// Cancel is a convenience wrapper for patients cancelling their own booking.
func (s *Service) Cancel(ctx context.Context, id, callerID uuid.UUID, callerRole string) (*Appointment, error) {
	return s.UpdateStatus(ctx, id, StatusCancelled, callerID, callerRole)
}
