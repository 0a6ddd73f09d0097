package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DoctorDirectory answers doctor-existence checks for other domains. A user
// counts as a doctor only when a doctor profile row exists, so patient and
// admin ids are refused even though they satisfy the users foreign key.
type DoctorDirectory struct {
	svc *Service
}

func NewDoctorDirectory(svc *Service) *DoctorDirectory {
	return &DoctorDirectory{svc: svc}
}

func (d *DoctorDirectory) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := d.svc.profiles.GetDoctorProfile(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
