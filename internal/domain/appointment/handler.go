package appointment

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.List)
	api.GET("/appointments/:id", h.Get)

	api.POST("/appointments", h.Book, auth.RequireRole(auth.RolePatient))
	api.POST("/appointments/:id/cancel", h.Cancel)
	api.PUT("/appointments/:id/status", h.UpdateStatus, auth.RequireRole(auth.RoleDoctor))
}

type bookRequest struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Reason   string    `json:"reason"`
}

func (h *Handler) Book(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	a, err := h.svc.Book(ctx, BookInput{
		PatientID: auth.UserIDFromContext(ctx),
		DoctorID:  req.DoctorID,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		Reason:    req.Reason,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ctx := c.Request().Context()
	a, err := h.svc.Get(ctx, id, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	items, total, err := h.svc.ListForCaller(ctx, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	a, err := h.svc.UpdateStatus(ctx, id, req.Status, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ctx := c.Request().Context()
	a, err := h.svc.Cancel(ctx, id, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrDoctorNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "appointment belongs to another user")
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
