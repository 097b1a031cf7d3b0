package engine

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vigil/vigil/internal/domain/intervention"
	"github.com/vigil/vigil/pkg/pagination"
)

// Handler exposes the engine over HTTP.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/assess", h.Assess)

	crisisGroup := api.Group("/crisis")
	crisisGroup.GET("/events", h.ListEvents)
	crisisGroup.GET("/events/:id", h.GetEvent)
	crisisGroup.GET("/interventions", h.ListInterventions)
	crisisGroup.GET("/interventions/:id", h.GetIntervention)
	crisisGroup.POST("/interventions/:id/status", h.UpdateInterventionStatus)
	crisisGroup.GET("/notifications", h.ListNotifications)
	crisisGroup.POST("/notifications/:id/ack", h.AcknowledgeNotification)
	crisisGroup.GET("/summary", h.Summary)
	crisisGroup.GET("/audit", h.AuditTrail)
}

// -- Assessment --

func (h *Handler) Assess(c echo.Context) error {
	var req AssessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.engine.Assess(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// -- Crisis events --

func (h *Handler) ListEvents(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	var events = h.engine.Dashboard().ActiveEvents(ctx)
	if subjectID := c.QueryParam("subject_id"); subjectID != "" {
		events = h.engine.Dashboard().SubjectEvents(ctx, subjectID)
	}
	page := pagination.Page(events, pg)
	return c.JSON(http.StatusOK, pagination.NewResponse(page, len(events), pg.Limit, pg.Offset))
}

func (h *Handler) GetEvent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	event, ok := h.engine.Events().Get(c.Request().Context(), id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "crisis event not found")
	}
	return c.JSON(http.StatusOK, event)
}

// -- Interventions --

func (h *Handler) ListInterventions(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	var items []intervention.Intervention
	if eventID := c.QueryParam("event_id"); eventID != "" {
		eid, err := uuid.Parse(eventID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid event_id")
		}
		items = h.engine.Interventions().ByEvent(ctx, eid)
	} else {
		items = h.engine.Dashboard().PendingInterventions(ctx)
	}
	page := pagination.Page(items, pg)
	return c.JSON(http.StatusOK, pagination.NewResponse(page, len(items), pg.Limit, pg.Offset))
}

func (h *Handler) GetIntervention(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	iv, ok := h.engine.Interventions().Get(c.Request().Context(), id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "intervention not found")
	}
	return c.JSON(http.StatusOK, iv)
}

type statusUpdateRequest struct {
	Status intervention.Status `json:"status"`
	Actor  string              `json:"actor"`
	Note   string              `json:"note"`
}

func (h *Handler) UpdateInterventionStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !intervention.ValidStatus(req.Status) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	if !h.engine.UpdateInterventionStatus(c.Request().Context(), id, req.Status, req.Actor, req.Note) {
		return echo.NewHTTPError(http.StatusConflict, "transition not allowed")
	}
	iv, _ := h.engine.Interventions().Get(c.Request().Context(), id)
	return c.JSON(http.StatusOK, iv)
}

// -- Notifications --

func (h *Handler) ListNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	items := h.engine.Dashboard().PendingNotifications(ctx)
	page := pagination.Page(items, pg)
	return c.JSON(http.StatusOK, pagination.NewResponse(page, len(items), pg.Limit, pg.Offset))
}

type ackRequest struct {
	Actor string `json:"actor"`
}

func (h *Handler) AcknowledgeNotification(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req ackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !h.engine.AcknowledgeNotification(c.Request().Context(), id, req.Actor) {
		return echo.NewHTTPError(http.StatusNotFound, "notification not found")
	}
	n, _ := h.engine.Notifications().Get(c.Request().Context(), id)
	return c.JSON(http.StatusOK, n)
}

// -- Dashboard and audit --

func (h *Handler) Summary(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.Dashboard().Summary(c.Request().Context()))
}

func (h *Handler) AuditTrail(c echo.Context) error {
	pg := pagination.FromContext(c)
	entries, err := h.engine.AuditTrail().Recent(c.Request().Context(), pg.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  entries,
		"limit": pg.Limit,
	})
}
