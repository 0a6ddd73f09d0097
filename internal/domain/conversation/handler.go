package conversation

import (
	"errors"
	"net/http"

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
	api.POST("/conversations", h.Create, auth.RequireRole(auth.RolePatient))
	api.GET("/conversations", h.List)
	api.GET("/conversations/:id", h.Get)
	api.DELETE("/conversations/:id", h.Delete)
	api.PUT("/conversations/:id/status", h.UpdateStatus)

	api.GET("/conversations/:id/messages", h.ListMessages)
	api.POST("/conversations/:id/messages", h.SubmitMessage, auth.RequireRole(auth.RolePatient))
}

type createRequest struct {
	Title   string  `json:"title"`
	Context *string `json:"context"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	conv, err := h.svc.Create(ctx, auth.UserIDFromContext(ctx), req.Title, req.Context)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, conv)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	items, total, err := h.svc.ListForPatient(ctx, auth.UserIDFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ctx := c.Request().Context()
	conv, err := h.svc.Get(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ctx := c.Request().Context()
	if err := h.svc.Delete(ctx, id, auth.UserIDFromContext(ctx)); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
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
	conv, err := h.svc.UpdateStatus(ctx, id, auth.UserIDFromContext(ctx), req.Status)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

func (h *Handler) ListMessages(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ctx := c.Request().Context()
	msgs, err := h.svc.ListMessages(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, msgs)
}

type submitRequest struct {
	Content      string                 `json:"content"`
	MessageType  string                 `json:"message_type"`
	Metadata     map[string]interface{} `json:"metadata"`
	RegenerateOf *uuid.UUID             `json:"regenerate_of"`
}

func (h *Handler) SubmitMessage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	reply, err := h.svc.SubmitMessage(ctx, SubmitInput{
		ConversationID: id,
		PatientID:      auth.UserIDFromContext(ctx),
		Content:        req.Content,
		MessageType:    req.MessageType,
		Metadata:       req.Metadata,
		RegenerateOf:   req.RegenerateOf,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, reply)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrConversationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	case errors.Is(err, ErrMessageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "message not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "conversation belongs to another user")
	case errors.Is(err, ErrAssistantUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, "assistant is unavailable, your message was saved")
	case errors.Is(err, ErrAlreadyAnswered):
		return echo.NewHTTPError(http.StatusConflict, "message already has a reply")
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
