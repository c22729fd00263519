// Package server exposes the session registry over HTTP for tooling that
// wants to drive or observe analyses remotely. Rendering stays with the
// caller; this surface only moves commands in and session state out.
package server

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"xiangqi/internal/board"
	"xiangqi/internal/config"
	"xiangqi/internal/core"
	"xiangqi/internal/engine"
	"xiangqi/internal/service"
	"xiangqi/internal/storage"
	"xiangqi/internal/ucci"
)

var validate = validator.New()

// apiError carries a status and a structured body up to the error
// handler, which renders every failure the same way.
type apiError struct {
	status int
	body   core.ErrorResponse
}

func (e *apiError) Error() string { return e.body.Error }

func newAPIError(status int, code, msg, details string) *apiError {
	return &apiError{
		status: status,
		body:   core.ErrorResponse{Error: msg, Code: code, Details: details},
	}
}

type Handler struct {
	svc   *service.Service
	cfg   *config.Config
	store *storage.Store // nil if persistence disabled
}

func NewHandler(svc *service.Service, cfg *config.Config, store *storage.Store) *Handler {
	return &Handler{svc: svc, cfg: cfg, store: store}
}

// NewFiberApp builds the HTTP application around one registry. The store
// backs the search history endpoint and may be nil.
func NewFiberApp(svc *service.Service, cfg *config.Config, store *storage.Store) *fiber.App {
	h := NewHandler(svc, cfg, store)

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New())

	app.Get("/health", h.Health)

	api := app.Group("/api/v1")
	api.Get("/engines", h.ListEngines)
	api.Post("/sessions", h.CreateSession)
	api.Get("/sessions", h.ListSessions)
	api.Get("/sessions/:handle", h.GetSession)
	api.Get("/sessions/:handle/searches", h.ListSearches)
	api.Delete("/sessions/:handle", h.DestroySession)
	api.Post("/sessions/:handle/position", h.SetPosition)
	api.Post("/sessions/:handle/search", h.StartSearch)
	api.Post("/sessions/:handle/stop", h.Stop)
	api.Post("/sessions/:handle/options", h.SetOption)

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.status).JSON(apiErr.body)
	}

	code := fiber.StatusInternalServerError
	response := core.ErrorResponse{
		Error: "internal server error",
		Code:  core.ErrInternalError,
	}
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		response.Error = e.Message
		switch code {
		case fiber.StatusNotFound:
			response.Code = core.ErrSessionNotFound
		case fiber.StatusBadRequest:
			response.Code = core.ErrInvalidRequest
		}
	}
	return c.Status(code).JSON(response)
}

// parseBody decodes and validates a JSON request body.
func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return newAPIError(fiber.StatusBadRequest, core.ErrInvalidRequest,
			"invalid request body", err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return newAPIError(fiber.StatusBadRequest, core.ErrInvalidRequest,
			"request validation failed", err.Error())
	}
	return nil
}

// checkFEN rejects positions the board cannot parse before they reach
// the engine. An empty FEN means the starting layout and is fine.
func checkFEN(fen string) error {
	if fen == "" {
		return nil
	}
	if _, err := board.ParseFEN(fen); err != nil {
		return newAPIError(fiber.StatusBadRequest, core.ErrInvalidFEN,
			"invalid FEN", err.Error())
	}
	return nil
}

// sessionError maps registry and session failures onto error codes.
func sessionError(err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return newAPIError(fiber.StatusNotFound, core.ErrSessionNotFound, err.Error(), "")
	case errors.Is(err, service.ErrClosed), errors.Is(err, engine.ErrSessionClosed):
		return newAPIError(fiber.StatusGone, core.ErrSessionClosed, err.Error(), "")
	case errors.Is(err, engine.ErrNotReady):
		return newAPIError(fiber.StatusConflict, core.ErrNotReady, err.Error(), "")
	case errors.Is(err, engine.ErrNotSearching):
		return newAPIError(fiber.StatusConflict, core.ErrNotSearching, err.Error(), "")
	default:
		return newAPIError(fiber.StatusBadRequest, core.ErrInvalidRequest, err.Error(), "")
	}
}

func handleParam(c *fiber.Ctx) (string, error) {
	handle := c.Params("handle")
	if _, err := uuid.Parse(handle); err != nil {
		return "", newAPIError(fiber.StatusBadRequest, core.ErrInvalidRequest,
			"invalid session handle", "handle must be a valid UUID")
	}
	return handle, nil
}

// Health check endpoint. Degraded persistence does not fail the check;
// the server keeps analyzing without history.
func (h *Handler) Health(c *fiber.Ctx) error {
	storageStatus := "disabled"
	if h.store != nil {
		storageStatus = "healthy"
		if !h.store.IsHealthy() {
			storageStatus = "degraded"
		}
	}
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"storage": storageStatus,
		"time":    time.Now().Unix(),
	})
}

// ListEngines returns the configured engine names.
func (h *Handler) ListEngines(c *fiber.Ctx) error {
	return c.JSON(core.EngineListResponse{
		Default: h.cfg.Default,
		Engines: h.cfg.Names(),
	})
}

// CreateSession spawns a configured engine and returns its handle.
func (h *Handler) CreateSession(c *fiber.Ctx) error {
	var req core.CreateSessionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	sessionCfg, err := h.cfg.SessionConfig(req.Engine)
	if err != nil {
		return newAPIError(fiber.StatusBadRequest, core.ErrUnknownEngine, err.Error(), "")
	}

	handle, err := h.svc.Create(sessionCfg)
	if err != nil {
		return newAPIError(fiber.StatusBadGateway, core.ErrSpawnFailed, err.Error(), "")
	}

	return c.Status(fiber.StatusCreated).JSON(core.SessionResponse{
		Handle: handle,
		Engine: sessionCfg.Name,
		State:  engine.StateHandshaking.String(),
	})
}

// ListSessions returns the active sessions.
func (h *Handler) ListSessions(c *fiber.Ctx) error {
	infos := h.svc.List()
	out := make([]core.SessionResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, core.SessionResponse{
			Handle: info.Handle,
			Engine: info.Name,
			State:  info.State.String(),
		})
	}
	return c.JSON(out)
}

// GetSession returns a session's state, latest analysis and options.
func (h *Handler) GetSession(c *fiber.Ctx) error {
	handle, err := handleParam(c)
	if err != nil {
		return err
	}

	session, err := h.svc.Get(handle)
	if err != nil {
		return sessionError(err)
	}

	resp := core.SessionStatusResponse{
		Handle: handle,
		Engine: session.Name(),
		State:  session.State().String(),
	}
	for _, info := range session.LatestInfo() {
		resp.Latest = append(resp.Latest, core.SearchInfoResponse{
			MultiPV: info.MultiPV,
			Depth:   info.Depth,
			Score:   info.Score,
			Mate:    info.Mate,
			IsMate:  info.HasMate,
			Nodes:   info.Nodes,
			NPS:     info.NPS,
			TimeMs:  info.TimeMs,
			PV:      info.PV,
		})
	}
	if best := session.LastBestMove(); best != nil {
		resp.BestMove = &core.BestMoveResponse{
			Move:   best.Move,
			Ponder: best.Ponder,
			Draw:   best.Draw,
			Resign: best.Resign,
			None:   best.None,
		}
	}
	for _, opt := range session.Options() {
		resp.Options = append(resp.Options, core.OptionResponse{
			Name:    opt.Name,
			Type:    string(opt.Type),
			Default: opt.Default,
			Min:     opt.Min,
			Max:     opt.Max,
			Vars:    opt.Vars,
		})
	}
	return c.JSON(resp)
}

// ListSearches returns the persisted searches for a handle, newest
// first. History outlives the session, so retired handles stay
// queryable here after the live endpoints report 404.
func (h *Handler) ListSearches(c *fiber.Ctx) error {
	handle, err := handleParam(c)
	if err != nil {
		return err
	}
	if h.store == nil {
		return newAPIError(fiber.StatusServiceUnavailable, core.ErrHistoryDisabled,
			"history persistence is disabled", "")
	}

	records, err := h.store.QuerySearches(handle)
	if err != nil {
		return newAPIError(fiber.StatusInternalServerError, core.ErrInternalError,
			"history query failed", err.Error())
	}

	out := make([]core.SearchHistoryEntry, 0, len(records))
	for _, r := range records {
		out = append(out, core.SearchHistoryEntry{
			FEN:      r.FEN,
			Moves:    r.Moves,
			Params:   r.Params,
			BestMove: r.BestMove,
			Ponder:   r.Ponder,
			Score:    r.Score,
			Mate:     r.Mate,
			Depth:    r.Depth,
			DoneAt:   r.DoneTimeUTC,
		})
	}
	return c.JSON(out)
}

// DestroySession terminates the engine behind a handle.
func (h *Handler) DestroySession(c *fiber.Ctx) error {
	handle, err := handleParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.Destroy(handle); err != nil {
		return sessionError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetPosition replaces a session's position.
func (h *Handler) SetPosition(c *fiber.Ctx) error {
	handle, err := handleParam(c)
	if err != nil {
		return err
	}

	var req core.PositionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := checkFEN(req.FEN); err != nil {
		return err
	}

	pos := ucci.Position{FEN: req.FEN, Moves: req.Moves}
	if err := h.svc.SetPosition(handle, pos); err != nil {
		return sessionError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// StartSearch starts one search on a session.
func (h *Handler) StartSearch(c *fiber.Ctx) error {
	handle, err := handleParam(c)
	if err != nil {
		return err
	}

	var req core.SearchRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := checkFEN(req.Position.FEN); err != nil {
		return err
	}

	pos := ucci.Position{FEN: req.Position.FEN, Moves: req.Position.Moves}
	params := ucci.SearchParams{
		Depth:      req.Depth,
		MoveTimeMs: req.MoveTime,
		Nodes:      req.Nodes,
		Infinite:   req.Infinite,
	}
	if err := h.svc.StartSearch(handle, pos, params); err != nil {
		return sessionError(err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// Stop concludes a session's running search.
func (h *Handler) Stop(c *fiber.Ctx) error {
	handle, err := handleParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.Stop(handle); err != nil {
		return sessionError(err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// SetOption forwards an option override to a session's engine.
func (h *Handler) SetOption(c *fiber.Ctx) error {
	handle, err := handleParam(c)
	if err != nil {
		return err
	}

	var req core.SetOptionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.svc.SetOption(handle, req.Name, req.Value); err != nil {
		return sessionError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
