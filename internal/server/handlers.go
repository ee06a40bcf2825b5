package server

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/discord"
	"github.com/T9Tuco/NexusBD/internal/gateway"
	"github.com/T9Tuco/NexusBD/internal/health"
	"github.com/T9Tuco/NexusBD/internal/metrics"
	"github.com/T9Tuco/NexusBD/internal/session"
	"github.com/T9Tuco/NexusBD/internal/types"
	"github.com/T9Tuco/NexusBD/internal/utils"
)

// Handlers binds the HTTP surface to the gateway and its
// collaborators.
type Handlers struct {
	logger         types.Logger
	gateway        *gateway.Gateway
	sessions       session.Store
	health         *health.Registry
	metricsManager *metrics.Manager
	version        *types.VersionInfo
	requestTimeout time.Duration
}

func NewHandlers(
	logger types.Logger,
	gw *gateway.Gateway,
	sessions session.Store,
	healthRegistry *health.Registry,
	metricsManager *metrics.Manager,
	version *types.VersionInfo,
	httpConfig *types.HTTPConfig,
) *Handlers {
	requestTimeout := time.Duration(httpConfig.RequestTimeout) * time.Second
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	return &Handlers{
		logger:         logger,
		gateway:        gw,
		sessions:       sessions,
		health:         healthRegistry,
		metricsManager: metricsManager,
		version:        version,
		requestTimeout: requestTimeout,
	}
}

// Register attaches all routes to the server. Metrics and session
// routes are skipped when their collaborators are absent.
func (h *Handlers) Register(s *Server, metricsPath string) error {
	type route struct {
		method  string
		path    string
		handler Handler
	}

	routes := []route{
		{fasthttp.MethodPost, "/api/discord", h.HandleAction},
		{fasthttp.MethodGet, "/healthz", h.HandleHealth},
		{fasthttp.MethodGet, "/version", h.HandleVersion},
	}

	if h.sessions != nil {
		routes = append(routes,
			route{fasthttp.MethodPost, "/api/session", h.HandleSessionCreate},
			route{fasthttp.MethodGet, "/api/session/{id}", h.HandleSessionGet},
			route{fasthttp.MethodDelete, "/api/session/{id}", h.HandleSessionDelete},
		)
	}

	for _, route := range routes {
		if err := s.Handle(route.method, route.path, route.handler); err != nil {
			return err
		}
	}

	if h.metricsManager != nil && metricsPath != "" {
		metricsHandler := h.metricsManager.Handler()
		return s.Handle(fasthttp.MethodGet, metricsPath, func(ctx *fasthttp.RequestCtx) {
			metricsHandler(ctx)
		})
	}

	return nil
}

func (h *Handlers) HandleAction(ctx *fasthttp.RequestCtx) {
	var req types.ActionRequest
	if err := utils.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.logger.Warn("Malformed action request", zap.Error(err))
		utils.CreateBadRequestResponse(ctx, "Invalid request body")
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.requestTimeout)
	defer cancel()

	result := h.gateway.Dispatch(reqCtx, &req)
	h.writeResult(ctx, result)
}

func (h *Handlers) writeResult(ctx *fasthttp.RequestCtx, result *types.ActionResult) {
	if result.Err != "" {
		utils.WriteJSON(ctx, result.Status, &types.ErrorEnvelope{
			Error:   result.Err,
			Details: result.Details,
		})
		return
	}

	utils.WriteJSON(ctx, result.Status, &types.SuccessEnvelope{
		Data:    result.Data,
		Warning: result.Warning,
	})
}

// HandleHealth renders the component health report. Without a
// registry it degrades to a static liveness response.
func (h *Handlers) HandleHealth(ctx *fasthttp.RequestCtx) {
	if h.health == nil {
		utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
		return
	}

	report := h.health.Check(ctx)

	status := fasthttp.StatusOK
	if report.Status != health.StatusHealthy {
		status = fasthttp.StatusServiceUnavailable
	}
	utils.WriteJSON(ctx, status, report)
}

func (h *Handlers) HandleVersion(ctx *fasthttp.RequestCtx) {
	utils.WriteJSON(ctx, fasthttp.StatusOK, h.version)
}

type sessionCreateRequest struct {
	Token string `json:"token"`
}

func (h *Handlers) HandleSessionCreate(ctx *fasthttp.RequestCtx) {
	var req sessionCreateRequest
	if err := utils.Unmarshal(ctx.PostBody(), &req); err != nil {
		utils.CreateBadRequestResponse(ctx, "Invalid request body")
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.requestTimeout)
	defer cancel()

	result := h.gateway.Dispatch(reqCtx, &types.ActionRequest{
		Action: gateway.ActionAuthenticate,
		Token:  req.Token,
	})
	if result.Err != "" {
		h.writeResult(ctx, result)
		return
	}

	var user discord.User
	if err := utils.Remarshal(result.Data, &user); err != nil {
		h.logger.Error("Failed to decode authenticated user", zap.Error(err))
		utils.CreateErrorResponse(ctx, "session user decode failed")
		return
	}

	sess, err := h.sessions.Save(reqCtx, &user, req.Token)
	if err != nil {
		h.logger.Error("Failed to save session", zap.Error(err))
		utils.CreateErrorResponse(ctx, "session save failed")
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusCreated, sess)
}

func (h *Handlers) HandleSessionGet(ctx *fasthttp.RequestCtx) {
	id := RouteParam(ctx, "id")
	if id == "" {
		utils.CreateBadRequestResponse(ctx, "Session ID is required")
		return
	}

	sess, err := h.sessions.Load(ctx, id)
	if err != nil {
		status := fasthttp.StatusNotFound
		if types.IsError(err, types.ErrSessionExpired) {
			status = fasthttp.StatusGone
		}
		utils.WriteError(ctx, status, err.Error())
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, sess)
}

func (h *Handlers) HandleSessionDelete(ctx *fasthttp.RequestCtx) {
	id := RouteParam(ctx, "id")
	if id == "" {
		utils.CreateBadRequestResponse(ctx, "Session ID is required")
		return
	}

	if err := h.sessions.Clear(ctx, id); err != nil {
		utils.WriteError(ctx, fasthttp.StatusNotFound, err.Error())
		return
	}

	ctx.SetStatusCode(fasthttp.StatusNoContent)
}
