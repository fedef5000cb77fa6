package survey

import (
	"context"
	"errors"
	"net/http"

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
	// Respondents: every signed-in role can take a survey
	takeGroup := api.Group("", auth.RequireRole(auth.RoleMember, auth.RoleConsultant, auth.RoleStaff))
	takeGroup.GET("/surveys", h.ListSurveys)
	takeGroup.GET("/surveys/:id", h.GetSurvey)
	takeGroup.POST("/surveys/:id/sessions", h.StartSession)
	takeGroup.GET("/survey-sessions/:sid", h.GetSession)
	takeGroup.POST("/survey-sessions/:sid/select", h.SelectOption)
	takeGroup.POST("/survey-sessions/:sid/advance", h.Advance)
	takeGroup.POST("/survey-sessions/:sid/back", h.GoBack)
	takeGroup.POST("/survey-sessions/:sid/restart", h.Restart)
	takeGroup.GET("/survey-sessions/:sid/result", h.GetResult)
	takeGroup.POST("/survey-sessions/:sid/submit", h.Submit)
	takeGroup.GET("/survey-submissions", h.ListSubmissions)
	takeGroup.GET("/survey-submissions/:id", h.GetSubmission)

	// Survey authoring – staff, admin
	writeGroup := api.Group("", auth.RequireRole(auth.RoleStaff))
	writeGroup.POST("/surveys", h.ImportSurvey)
}

func (h *Handler) ImportSurvey(c echo.Context) error {
	var sv Survey
	if err := c.Bind(&sv); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sv.ID = uuid.Nil
	if err := h.svc.ImportSurvey(c.Request().Context(), &sv); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sv)
}

func (h *Handler) ListSurveys(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSurveys(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// GetSurvey accepts either the survey UUID or its slug.
func (h *Handler) GetSurvey(c echo.Context) error {
	ctx := c.Request().Context()
	var sv *Survey
	var err error
	if id, parseErr := uuid.Parse(c.Param("id")); parseErr == nil {
		sv, err = h.svc.GetSurvey(ctx, id)
	} else {
		sv, err = h.svc.GetSurveyBySlug(ctx, c.Param("id"))
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sv)
}

func (h *Handler) StartSession(c echo.Context) error {
	ctx := c.Request().Context()
	surveyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		sv, lookupErr := h.svc.GetSurveyBySlug(ctx, c.Param("id"))
		if lookupErr != nil {
			return httpError(lookupErr)
		}
		surveyID = sv.ID
	}
	view, err := h.svc.StartSession(ctx, surveyID, auth.UserIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, view)
}

func (h *Handler) GetSession(c echo.Context) error {
	sid, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	ctx := c.Request().Context()
	view, err := h.svc.GetSession(ctx, sid, auth.UserIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

type selectRequest struct {
	OptionIndex *int `json:"optionIndex"`
}

func (h *Handler) SelectOption(c echo.Context) error {
	sid, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	var req selectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.OptionIndex == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "optionIndex is required")
	}
	ctx := c.Request().Context()
	view, err := h.svc.SelectOption(ctx, sid, auth.UserIDFromContext(ctx), *req.OptionIndex)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) Advance(c echo.Context) error {
	return h.step(c, h.svc.Advance)
}

func (h *Handler) GoBack(c echo.Context) error {
	return h.step(c, h.svc.GoBack)
}

func (h *Handler) Restart(c echo.Context) error {
	return h.step(c, h.svc.Restart)
}

type stepFunc func(ctx context.Context, sessionID uuid.UUID, accountID string) (*SessionView, error)

func (h *Handler) step(c echo.Context, fn stepFunc) error {
	sid, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	ctx := c.Request().Context()
	view, err := fn(ctx, sid, auth.UserIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) GetResult(c echo.Context) error {
	sid, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	ctx := c.Request().Context()
	res, err := h.svc.Result(ctx, sid, auth.UserIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Submit(c echo.Context) error {
	sid, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	ctx := c.Request().Context()
	sub, err := h.svc.Submit(ctx, sid, auth.UserIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sub)
}

// ListSubmissions lists the caller's submissions. Staff may pass
// ?account_id= to list someone else's.
func (h *Handler) ListSubmissions(c echo.Context) error {
	ctx := c.Request().Context()
	accountID := auth.UserIDFromContext(ctx)
	if other := c.QueryParam("account_id"); other != "" && other != accountID {
		if !auth.HasRole(ctx, auth.RoleStaff, auth.RoleConsultant) {
			return echo.NewHTTPError(http.StatusForbidden, "cannot list another account's submissions")
		}
		accountID = other
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSubmissions(ctx, accountID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetSubmission(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	privileged := auth.HasRole(ctx, auth.RoleStaff, auth.RoleConsultant)
	sub, err := h.svc.GetSubmission(ctx, id, auth.UserIDFromContext(ctx), privileged)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sub)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrSurveyNotFound), errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSubmissionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidOption), errors.Is(err, ErrMalformedSurvey):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotTerminated), errors.Is(err, ErrAlreadyTerminated), errors.Is(err, ErrAlreadySubmitted):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
