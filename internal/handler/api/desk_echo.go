package api

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"FlipDesk/internal/domain/models"
	domrepo "FlipDesk/internal/domain/repository"
	"FlipDesk/internal/service/metrics"
	"FlipDesk/internal/usecase"
	xhttp "FlipDesk/pkg/http"
	xlogger "FlipDesk/pkg/logger"
)

// HeaderUserID carries the caller's session identity.
const HeaderUserID = "X-User-ID"

type NBAService interface {
	GetActions(ctx context.Context, sess models.SessionContext) (*models.NBAResult, error)
}

type ScanService interface {
	Opportunities(ctx context.Context, p usecase.ScanParams) (*models.ScanResult, error)
	RecentScans(ctx context.Context, since time.Time, limit int) ([]domrepo.ScanRecord, error)
}

type ItemService interface {
	Signal(ctx context.Context, itemID int64, explain bool) (*models.ItemAnalysis, error)
	Features(ctx context.Context, itemID int64) (*models.FeatureReport, error)
}

type PortfolioService interface {
	Advise(ctx context.Context, sess models.SessionContext, req models.PortfolioRequest) (*models.PortfolioAdvice, error)
}

type DeskService interface {
	Rank(ctx context.Context, req models.DeskRequest) (*models.DeskResult, error)
}

// DeskEchoHandler serves the desk API.
type DeskEchoHandler struct {
	logger    *xlogger.Logger
	nba       NBAService
	scans     ScanService
	items     ItemService
	portfolio PortfolioService
	desk      DeskService
}

func NewDeskEchoHandler(logger *xlogger.Logger, nba NBAService, scans ScanService, items ItemService, portfolio PortfolioService, desk DeskService) *DeskEchoHandler {
	metrics.Register()
	return &DeskEchoHandler{logger: logger, nba: nba, scans: scans, items: items, portfolio: portfolio, desk: desk}
}

func (h *DeskEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/nba", h.NBA)
	g.GET("/reversion/opportunities", h.Opportunities)
	g.GET("/reversion/scans", h.Scans)
	g.GET("/items/:id/signal", h.ItemSignal)
	g.GET("/items/:id/features", h.ItemFeatures)
	g.POST("/portfolio/advice", h.PortfolioAdvice)
	g.GET("/desk/opportunities", h.DeskOpportunities)
}

func session(c echo.Context) models.SessionContext {
	return models.SessionContext{UserID: c.Request().Header.Get(HeaderUserID)}
}

func observe(endpoint string, start time.Time) {
	metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// fail maps use case errors onto the response envelope.
func (h *DeskEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.EndpointErrors.WithLabelValues(endpoint).Inc()
	if errors.Is(err, usecase.ErrItemNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("item not found").WithError(err))
	}
	h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError("request failed").WithError(err))
}

func (h *DeskEchoHandler) NBA(c echo.Context) error {
	defer observe("nba", time.Now())

	sess := session(c)
	if sess.UserID == "" {
		return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError("missing "+HeaderUserID))
	}
	res, err := h.nba.GetActions(c.Request().Context(), sess)
	if err != nil {
		return h.fail(c, "nba", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, no-store")
	return xhttp.SuccessResponse(c, res)
}

func (h *DeskEchoHandler) Opportunities(c echo.Context) error {
	defer observe("opportunities", time.Now())

	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.scans.Opportunities(c.Request().Context(), usecase.ScanParams{
		MinConfidence: req.MinConfidence,
		MinPotential:  req.MinPotential,
		Limit:         req.Limit,
		Refresh:       req.Refresh,
	})
	if err != nil {
		return h.fail(c, "opportunities", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

type scansRequest struct {
	Limit int `query:"limit" default:"20" validate:"gte=1,lte=500"`
	// Since accepts RFC3339, a plain date or unix seconds.
	Since string `query:"since"`
}

func (h *DeskEchoHandler) Scans(c echo.Context) error {
	defer observe("scans", time.Now())

	req := &scansRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	since := xhttp.ParseTimeDefault(req.Since, time.Time{})
	recs, err := h.scans.RecentScans(c.Request().Context(), since, req.Limit)
	if err != nil {
		return h.fail(c, "scans", err)
	}
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

func (h *DeskEchoHandler) ItemSignal(c echo.Context) error {
	defer observe("item_signal", time.Now())

	req := &models.ItemRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.items.Signal(c.Request().Context(), req.ID, req.Explain)
	if err != nil {
		return h.fail(c, "item_signal", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DeskEchoHandler) ItemFeatures(c echo.Context) error {
	defer observe("item_features", time.Now())

	req := &models.ItemRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.items.Features(c.Request().Context(), req.ID)
	if err != nil {
		return h.fail(c, "item_features", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// PortfolioAdvice classifies the posted holdings, or the session's open
// positions when the body carries none.
func (h *DeskEchoHandler) PortfolioAdvice(c echo.Context) error {
	defer observe("portfolio_advice", time.Now())

	req := &models.PortfolioRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sess := session(c)
	if len(req.Holdings) == 0 && sess.UserID == "" {
		return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError("holdings or "+HeaderUserID+" required"))
	}
	res, err := h.portfolio.Advise(c.Request().Context(), sess, *req)
	if err != nil {
		return h.fail(c, "portfolio_advice", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DeskEchoHandler) DeskOpportunities(c echo.Context) error {
	defer observe("desk_opportunities", time.Now())

	req := &models.DeskRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.desk.Rank(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "desk_opportunities", err)
	}
	return xhttp.SuccessResponse(c, res)
}

var (
	_ NBAService       = (*usecase.NBAUseCase)(nil)
	_ ScanService      = (*usecase.ScanUseCase)(nil)
	_ ItemService      = (*usecase.ItemUseCase)(nil)
	_ PortfolioService = (*usecase.PortfolioUseCase)(nil)
	_ DeskService      = (*usecase.DeskUseCase)(nil)
	_ xhttp.Handler    = (*DeskEchoHandler)(nil)
)
