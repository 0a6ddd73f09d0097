package document

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/carebridge/internal/platform/auth"
	"github.com/carebridge/carebridge/internal/platform/blobstore"
	"github.com/carebridge/carebridge/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts document endpoints. The text endpoint lives on the
// public group because its callers authenticate with a signed token instead of
// a bearer token.
func (h *Handler) RegisterRoutes(public, api *echo.Group) {
	api.POST("/documents", h.Upload, auth.RequireRole(auth.RolePatient))
	api.GET("/documents", h.List)
	api.GET("/documents/:id", h.Get)
	api.GET("/documents/:id/download", h.Download)
	api.DELETE("/documents/:id", h.Delete)

	public.GET("/documents/:id/text", h.Text)
}

func (h *Handler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}

	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read file")
	}
	defer src.Close()

	ctx := c.Request().Context()
	doc, err := h.svc.Upload(ctx, UploadInput{
		OwnerID:     auth.UserIDFromContext(ctx),
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     src,
	})
	if err != nil {
		switch {
		case errors.Is(err, blobstore.ErrFileTooLarge):
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, blobstore.ErrInvalidContentType):
			return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, blobstore.ErrMissingFileName):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return mapError(err)
		}
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	items, total, err := h.svc.ListForOwner(ctx, auth.UserIDFromContext(ctx), pg.Limit, pg.Offset)
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
	doc, err := h.svc.Get(ctx, id, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) Download(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ctx := c.Request().Context()
	rc, doc, err := h.svc.Download(ctx, id, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx))
	if err != nil {
		return mapError(err)
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	return c.Stream(http.StatusOK, doc.ContentType, rc)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ctx := c.Request().Context()
	if err := h.svc.Delete(ctx, id, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx)); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Text(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	text, err := h.svc.GetTextByToken(c.Request().Context(), id, c.QueryParam("token"))
	if err != nil {
		return mapError(err)
	}
	return c.String(http.StatusOK, text)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "document belongs to another user")
	case errors.Is(err, ErrTextUnavailable):
		return echo.NewHTTPError(http.StatusNotFound, "document has no extracted text")
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
