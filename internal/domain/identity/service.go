package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carebridge/carebridge/internal/platform/auth"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrInvalidInput       = errors.New("invalid input")
)

// TxRunner runs fn atomically. Repositories reading the returned context join
// the same transaction, so either every write inside fn lands or none do.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	users    UserRepository
	profiles ProfileRepository
	tx       TxRunner
	issuer   *auth.TokenIssuer
	revoked  *auth.TokenRevocationStore
	tokenTTL time.Duration
}

func NewService(
	users UserRepository,
	profiles ProfileRepository,
	tx TxRunner,
	issuer *auth.TokenIssuer,
	revoked *auth.TokenRevocationStore,
	tokenTTL time.Duration,
) *Service {
	return &Service{
		users:    users,
		profiles: profiles,
		tx:       tx,
		issuer:   issuer,
		revoked:  revoked,
		tokenTTL: tokenTTL,
	}
}

// RegisterInput carries everything needed to create an account. Profile
// fields are applied to the side table matching the role.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Role     string

	// Patient fields
	DateOfBirth *time.Time
	Phone       *string
	Address     *string

	// Doctor fields
	Specialty     string
	LicenseNumber *string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	if in.FullName == "" {
		return nil, fmt.Errorf("%w: full_name is required", ErrInvalidInput)
	}
	if !auth.ValidRoles[in.Role] {
		return nil, fmt.Errorf("%w: invalid role: %s", ErrInvalidInput, in.Role)
	}
	if in.Role == auth.RoleDoctor && in.Specialty == "" {
		return nil, fmt.Errorf("%w: specialty is required for doctors", ErrInvalidInput)
	}

	if existing, err := s.users.GetByEmail(ctx, in.Email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         in.Role,
		Active:       true,
	}

	// User and profile are written in one transaction so a profile failure
	// cannot leave an authenticatable account with no profile behind.
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		switch in.Role {
		case auth.RolePatient:
			p := &PatientProfile{
				UserID:      u.ID,
				DateOfBirth: in.DateOfBirth,
				Phone:       in.Phone,
				Address:     in.Address,
			}
			if err := s.profiles.CreatePatientProfile(ctx, p); err != nil {
				return fmt.Errorf("create patient profile: %w", err)
			}
		case auth.RoleDoctor:
			p := &DoctorProfile{
				UserID:        u.ID,
				Specialty:     in.Specialty,
				LicenseNumber: in.LicenseNumber,
				Phone:         in.Phone,
			}
			if err := s.profiles.CreateDoctorProfile(ctx, p); err != nil {
				return fmt.Errorf("create doctor profile: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return u, nil
}

// Session is the result of a successful login.
type Session struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticate checks credentials and issues a token. Lookup and password
// failures return the same error so callers cannot probe for accounts.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrAccountDisabled
	}

	token, _, expiresAt, err := s.issuer.Issue(u.ID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &Session{User: u, Token: token, ExpiresAt: expiresAt}, nil
}

// Logout revokes the token behind the given JTI. The revocation entry lives
// for a full token TTL, past the point where the token itself expires.
func (s *Service) Logout(_ context.Context, jti string) error {
	if jti == "" {
		return fmt.Errorf("missing token id")
	}
	s.revoked.Revoke(jti, time.Now().Add(s.tokenTTL))
	return nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

// Deactivate disables an account. Existing tokens keep working until they
// expire; middleware rejects inactive users at the service layer.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	u.Active = false
	return s.users.Update(ctx, u)
}

func (s *Service) GetPatientProfile(ctx context.Context, userID uuid.UUID) (*PatientProfile, error) {
	p, err := s.profiles.GetPatientProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdatePatientProfile(ctx context.Context, p *PatientProfile) error {
	if p.UserID == uuid.Nil {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.profiles.UpdatePatientProfile(ctx, p)
}

func (s *Service) GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error) {
	p, err := s.profiles.GetDoctorProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdateDoctorProfile(ctx context.Context, p *DoctorProfile) error {
	if p.UserID == uuid.Nil {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if p.Specialty == "" {
		return fmt.Errorf("%w: specialty is required", ErrInvalidInput)
	}
	return s.profiles.UpdateDoctorProfile(ctx, p)
}
