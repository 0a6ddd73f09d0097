package appointment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
}

// DoctorSource reports whether a user id belongs to a registered doctor.
// Backed by the identity domain's doctor profiles.
type DoctorSource interface {
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
}
