package identity

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/carebridge/internal/platform/auth"
	"github.com/carebridge/carebridge/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts public auth routes on the public group and
// account routes on the authenticated group.
func (h *Handler) RegisterRoutes(public *echo.Group, api *echo.Group) {
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)

	api.POST("/auth/logout", h.Logout)
	api.GET("/me", h.Me)
	api.GET("/me/profile", h.GetMyProfile)
	api.PUT("/me/profile", h.UpdateMyProfile)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/users", h.ListUsers)
	admin.GET("/users/:id", h.GetUser)
	admin.DELETE("/users/:id", h.DeactivateUser)
}

type registerRequest struct {
	Email         string     `json:"email"`
	Password      string     `json:"password"`
	FullName      string     `json:"full_name"`
	Role          string     `json:"role"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty"`
	Phone         *string    `json:"phone,omitempty"`
	Address       *string    `json:"address,omitempty"`
	Specialty     string     `json:"specialty,omitempty"`
	LicenseNumber *string    `json:"license_number,omitempty"`
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	u, err := h.svc.Register(c.Request().Context(), RegisterInput{
		Email:         req.Email,
		Password:      req.Password,
		FullName:      req.FullName,
		Role:          req.Role,
		DateOfBirth:   req.DateOfBirth,
		Phone:         req.Phone,
		Address:       req.Address,
		Specialty:     req.Specialty,
		LicenseNumber: req.LicenseNumber,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrInvalidInput):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}
	return c.JSON(http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	session, err := h.svc.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		case errors.Is(err, ErrAccountDisabled):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}
	return c.JSON(http.StatusOK, session)
}

func (h *Handler) Logout(c echo.Context) error {
	jti := auth.JTIFromContext(c.Request().Context())
	if err := h.svc.Logout(c.Request().Context(), jti); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	u, err := h.svc.GetUser(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) GetMyProfile(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserIDFromContext(ctx)

	switch auth.RoleFromContext(ctx) {
	case auth.RolePatient:
		p, err := h.svc.GetPatientProfile(ctx, userID)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "profile not found")
		}
		return c.JSON(http.StatusOK, p)
	case auth.RoleDoctor:
		p, err := h.svc.GetDoctorProfile(ctx, userID)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "profile not found")
		}
		return c.JSON(http.StatusOK, p)
	default:
		return echo.NewHTTPError(http.StatusNotFound, "no profile for this role")
	}
}

func (h *Handler) UpdateMyProfile(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserIDFromContext(ctx)

	switch auth.RoleFromContext(ctx) {
	case auth.RolePatient:
		var p PatientProfile
		if err := c.Bind(&p); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		p.UserID = userID
		if err := h.svc.UpdatePatientProfile(ctx, &p); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusOK, p)
	case auth.RoleDoctor:
		var p DoctorProfile
		if err := c.Bind(&p); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		p.UserID = userID
		if err := h.svc.UpdateDoctorProfile(ctx, &p); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusOK, p)
	default:
		return echo.NewHTTPError(http.StatusNotFound, "no profile for this role")
	}
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUsers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeactivateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.NoContent(http.StatusNoContent)
}
