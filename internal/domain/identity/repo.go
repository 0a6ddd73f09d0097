package identity

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
}

type ProfileRepository interface {
	CreatePatientProfile(ctx context.Context, p *PatientProfile) error
	GetPatientProfile(ctx context.Context, userID uuid.UUID) (*PatientProfile, error)
	UpdatePatientProfile(ctx context.Context, p *PatientProfile) error

	CreateDoctorProfile(ctx context.Context, p *DoctorProfile) error
	GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error)
	UpdateDoctorProfile(ctx context.Context, p *DoctorProfile) error
}
