package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/carebridge/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const userCols = `id, email, password_hash, full_name, role, active, created_at, updated_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.Active,
		&u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, role, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Email, u.PasswordHash, u.FullName, u.Role, u.Active)
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET email=$2, full_name=$3, role=$4, active=$5, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.Email, u.FullName, u.Role, u.Active)
	return err
}

func (r *userRepoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+userCols+` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, nil
}

// =========== Profile Repository ===========

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewProfileRepoPG(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepoPG{pool: pool}
}

func (r *profileRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientProfileCols = `user_id, date_of_birth, phone, address, created_at, updated_at`

func (r *profileRepoPG) scanPatientProfile(row pgx.Row) (*PatientProfile, error) {
	var p PatientProfile
	err := row.Scan(&p.UserID, &p.DateOfBirth, &p.Phone, &p.Address, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *profileRepoPG) CreatePatientProfile(ctx context.Context, p *PatientProfile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_profile (user_id, date_of_birth, phone, address)
		VALUES ($1,$2,$3,$4)`,
		p.UserID, p.DateOfBirth, p.Phone, p.Address)
	return err
}

func (r *profileRepoPG) GetPatientProfile(ctx context.Context, userID uuid.UUID) (*PatientProfile, error) {
	return r.scanPatientProfile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientProfileCols+` FROM patient_profile WHERE user_id = $1`, userID))
}

func (r *profileRepoPG) UpdatePatientProfile(ctx context.Context, p *PatientProfile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_profile SET date_of_birth=$2, phone=$3, address=$4, updated_at=NOW()
		WHERE user_id = $1`,
		p.UserID, p.DateOfBirth, p.Phone, p.Address)
	return err
}

const doctorProfileCols = `user_id, specialty, license_number, phone, created_at, updated_at`

func (r *profileRepoPG) scanDoctorProfile(row pgx.Row) (*DoctorProfile, error) {
	var p DoctorProfile
	err := row.Scan(&p.UserID, &p.Specialty, &p.LicenseNumber, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *profileRepoPG) CreateDoctorProfile(ctx context.Context, p *DoctorProfile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_profile (user_id, specialty, license_number, phone)
		VALUES ($1,$2,$3,$4)`,
		p.UserID, p.Specialty, p.LicenseNumber, p.Phone)
	return err
}

func (r *profileRepoPG) GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error) {
	return r.scanDoctorProfile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doctorProfileCols+` FROM doctor_profile WHERE user_id = $1`, userID))
}

func (r *profileRepoPG) UpdateDoctorProfile(ctx context.Context, p *DoctorProfile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_profile SET specialty=$2, license_number=$3, phone=$4, updated_at=NOW()
		WHERE user_id = $1`,
		p.UserID, p.Specialty, p.LicenseNumber, p.Phone)
	return err
}
