package prescription

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rxdesk/rxdesk/internal/platform/auth"
	"github.com/rxdesk/rxdesk/internal/platform/middleware"
	"github.com/rxdesk/rxdesk/internal/platform/rxdoc"
	"github.com/rxdesk/rxdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/prescriptions", h.ListPrescriptions)
	api.POST("/prescriptions", h.CreatePrescription)
	api.POST("/prescriptions/preview", h.PreviewDraft)
	api.POST("/prescriptions/render", h.RenderDraft)
	api.POST("/prescriptions/quantities", h.Quantities)
	api.GET("/prescriptions/:id", h.GetPrescription)
	api.GET("/prescriptions/:id/pdf", h.RecordPDF)
	api.GET("/prescriptions/:id/preview", h.RecordPreview)

	api.GET("/dashboard/stats", h.DashboardStats)
}

func (h *Handler) CreatePrescription(c echo.Context) error {
	var p Prescription
	if err := c.Bind(&p.Prescription); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p.CreatedBy = auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.CreatePrescription(c.Request().Context(), &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, &p)
}

func (h *Handler) GetPrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPrescription(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	pg := pagination.FromContext(c)
	patient := strings.TrimSpace(c.QueryParam("patient"))
	items, total, err := h.svc.ListPrescriptions(c.Request().Context(), patient, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	resp := pagination.NewResponse(items, total, pg.Limit, pg.Offset).
		WithLinks(c.Request().URL.Path, c.QueryParams())
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Quantities(c echo.Context) error {
	var p rxdoc.Prescription
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.JSON(http.StatusOK, h.svc.Quantities(&p))
}

func (h *Handler) PreviewDraft(c echo.Context) error {
	return h.renderDraft(c, rxdoc.FormatPreview)
}

// RenderDraft renders the posted draft in the format named by ?format=,
// PDF by default.
func (h *Handler) RenderDraft(c echo.Context) error {
	format, err := rxdoc.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.renderDraft(c, format)
}

func (h *Handler) renderDraft(c echo.Context, format rxdoc.Format) error {
	var p rxdoc.Prescription
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	art, err := h.svc.Render(&p, format)
	if err != nil {
		return httpError(err)
	}
	return writeArtifact(c, art)
}

func (h *Handler) RecordPDF(c echo.Context) error {
	return h.renderRecord(c, rxdoc.FormatPDF)
}

func (h *Handler) RecordPreview(c echo.Context) error {
	return h.renderRecord(c, rxdoc.FormatPreview)
}

func (h *Handler) renderRecord(c echo.Context, format rxdoc.Format) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	art, err := h.svc.RenderRecord(c.Request().Context(), id, format)
	if err != nil {
		return httpError(err)
	}
	return writeArtifact(c, art)
}

func (h *Handler) DashboardStats(c echo.Context) error {
	stats, err := h.svc.DashboardStats(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// writeArtifact sends a PDF as a download and a preview page inline.
func writeArtifact(c echo.Context, art *rxdoc.Artifact) error {
	disposition := "attachment"
	if strings.HasPrefix(art.ContentType, "text/html") {
		disposition = "inline"
		middleware.AllowDocument(c)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType(disposition, map[string]string{"filename": art.Filename}))
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, art.ContentType, art.Body)
}

func httpError(err error) error {
	var verr *rxdoc.ValidationError
	var rerr *rxdoc.RenderError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
			"message":  "incomplete prescription",
			"problems": verr.Problems,
		})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
	case errors.As(err, &rerr):
		return echo.NewHTTPError(http.StatusInternalServerError, "document could not be generated").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process prescription").SetInternal(err)
	}
}
