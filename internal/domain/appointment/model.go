package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no-show"
)

// Appointment is a booking between a patient and a doctor. CalendarEventID
// is set when the external calendar sync succeeded; a nil value means the
// booking exists only locally, which is acceptable since sync is best effort.
type Appointment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID `db:"doctor_id" json:"doctor_id"`
	StartsAt        time.Time `db:"starts_at" json:"starts_at"`
	EndsAt          time.Time `db:"ends_at" json:"ends_at"`
	Reason          string    `db:"reason" json:"reason"`
	Status          string    `db:"status" json:"status"`
	CalendarEventID *string   `db:"calendar_event_id" json:"calendar_event_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
