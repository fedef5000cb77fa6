package appointment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clearpath/prevention/internal/platform/auth"
	"github.com/clearpath/prevention/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Every signed-in role; ownership is checked per appointment
	readGroup := api.Group("", auth.RequireRole(auth.RoleMember, auth.RoleConsultant, auth.RoleStaff))
	readGroup.GET("/schedules", h.ListSchedules)
	readGroup.GET("/schedules/:id", h.GetSchedule)
	readGroup.POST("/appointments", h.Book)
	readGroup.GET("/appointments", h.List)
	readGroup.GET("/appointments/:id", h.Get)
	readGroup.PUT("/appointments/:id/status", h.UpdateStatus)
	readGroup.POST("/appointments/:id/check-in", h.CheckIn)

	// Schedule management – consultant, staff, admin
	schedGroup := api.Group("", auth.RequireRole(auth.RoleConsultant, auth.RoleStaff))
	schedGroup.POST("/schedules", h.CreateSchedule)

	// Operations – admin only
	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.POST("/appointments/expire", h.Expire)
}

// -- Schedule Handlers --

type scheduleRequest struct {
	ConsultantID string    `json:"consultantId"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
}

func (h *Handler) CreateSchedule(c echo.Context) error {
	var req scheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	user := auth.UserIDFromContext(ctx)
	if req.ConsultantID == "" {
		req.ConsultantID = user
	}
	// consultants publish their own slots only
	if req.ConsultantID != user && !auth.HasRole(ctx, auth.RoleStaff) {
		return echo.NewHTTPError(http.StatusForbidden, "cannot create schedules for another consultant")
	}
	sched := &Schedule{ConsultantID: req.ConsultantID, StartTime: req.StartTime, EndTime: req.EndTime}
	if err := h.svc.CreateSchedule(ctx, sched); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, sched)
}

func (h *Handler) GetSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sched, err := h.svc.GetSchedule(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) ListSchedules(c echo.Context) error {
	consultantID := c.QueryParam("consultant_id")
	if consultantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "consultant_id is required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSchedules(c.Request().Context(), consultantID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Appointment Handlers --

type bookRequest struct {
	ScheduleID  uuid.UUID `json:"scheduleId"`
	AccountID   string    `json:"accountId"`
	Description string    `json:"description"`
}

// Book reserves a slot for the caller. Staff may book on behalf of an
// account by passing accountId.
func (h *Handler) Book(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ScheduleID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "scheduleId is required")
	}
	ctx := c.Request().Context()
	user := auth.UserIDFromContext(ctx)
	if req.AccountID == "" {
		req.AccountID = user
	}
	if req.AccountID != user && !auth.HasRole(ctx, auth.RoleStaff) {
		return echo.NewHTTPError(http.StatusForbidden, "cannot book for another account")
	}
	a := &Appointment{ScheduleID: req.ScheduleID, AccountID: req.AccountID, Description: req.Description}
	if err := h.svc.Book(ctx, a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	a, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// List returns appointments visible to the caller. Members see their own
// bookings and consultants their own consultations; staff may filter freely.
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	user := auth.UserIDFromContext(ctx)
	f := Filter{
		AccountID:    c.QueryParam("account_id"),
		ConsultantID: c.QueryParam("consultant_id"),
		Status:       Status(c.QueryParam("status")),
	}
	switch {
	case auth.HasRole(ctx, auth.RoleStaff):
	case auth.HasRole(ctx, auth.RoleConsultant) && f.AccountID == "":
		f.ConsultantID = user
	default:
		f.AccountID = user
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type statusRequest struct {
	AppointmentID *uuid.UUID `json:"appointmentId"`
	NewStatus     Status     `json:"newStatus"`
	Confirmed     bool       `json:"confirmed"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	a, err := h.load(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AppointmentID != nil && *req.AppointmentID != a.ID {
		return echo.NewHTTPError(http.StatusBadRequest, "appointmentId does not match path")
	}
	if !req.NewStatus.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "newStatus must be BOOKED, CONSULTED or CANCELLED")
	}
	ctx := c.Request().Context()
	switch req.NewStatus {
	case StatusConsulted:
		if !isConsultantOf(ctx, a) {
			return echo.NewHTTPError(http.StatusForbidden, "only staff or the consultant can mark an appointment consulted")
		}
	case StatusCancelled:
		if !req.Confirmed {
			return echo.NewHTTPError(http.StatusBadRequest, "cancellation must be confirmed")
		}
	}

	updated, err := h.svc.UpdateStatus(ctx, a.ID, req.NewStatus)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) CheckIn(c echo.Context) error {
	a, err := h.load(c)
	if err != nil {
		return err
	}
	updated, err := h.svc.CheckIn(c.Request().Context(), a.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) Expire(c echo.Context) error {
	report, err := h.svc.ExpireStale(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

// load fetches the appointment named in the path and hides it from callers
// who are neither a party to it nor staff.
func (h *Handler) load(c echo.Context) (*Appointment, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	a, err := h.svc.Get(ctx, id)
	if err != nil {
		return nil, httpError(err)
	}
	if a.AccountID != auth.UserIDFromContext(ctx) && !isConsultantOf(ctx, a) {
		return nil, echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	}
	return a, nil
}

func isConsultantOf(ctx context.Context, a *Appointment) bool {
	if auth.HasRole(ctx, auth.RoleStaff) {
		return true
	}
	return auth.HasRole(ctx, auth.RoleConsultant) && a.ConsultantID == auth.UserIDFromContext(ctx)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrScheduleNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAlreadyCheckedIn),
		errors.Is(err, ErrSlotTaken), errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrCheckInWindowClosed), errors.Is(err, ErrSlotUnavailable):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidStatus):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrMeetingLink):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
