package identity

import (
	"time"

	"github.com/google/uuid"
)

// User is a single account. The role column decides which profile side table
// carries the rest of the record: patients get a patient_profile row, doctors
// a doctor_profile row, admins neither.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         string    `db:"role" json:"role"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// PatientProfile holds patient-specific fields, one row per patient user.
type PatientProfile struct {
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// DoctorProfile holds doctor-specific fields, one row per doctor user.
type DoctorProfile struct {
	UserID        uuid.UUID `db:"user_id" json:"user_id"`
	Specialty     string    `db:"specialty" json:"specialty"`
	LicenseNumber *string   `db:"license_number" json:"license_number,omitempty"`
	Phone         *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
