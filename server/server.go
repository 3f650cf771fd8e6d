// Package server exposes the simulation over HTTP. Handlers translate the
// simulation's error taxonomy into status codes; all conversation logic stays
// in the simulation package.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/patientsim/core"
	"github.com/hupe1980/patientsim/invoker"
	"github.com/hupe1980/patientsim/logging"
	"github.com/hupe1980/patientsim/session"
	"github.com/hupe1980/patientsim/simulation"
	"github.com/hupe1980/patientsim/transcript"
)

// Options configure a Server.
type Options struct {
	// Addr is the listen address in host:port form.
	Addr string
	// ReadTimeout and WriteTimeout bound the underlying http.Server. The
	// write timeout must cover a full retry schedule, so it defaults high.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Logger logging.Logger
}

// Server serves the simulation API.
type Server struct {
	echo    *echo.Echo
	sim     *simulation.Simulation
	metrics *Metrics
	logger  logging.Logger
	opts    Options
}

// New creates a Server for the given simulation.
func New(sim *simulation.Simulation, optFns ...func(o *Options)) (*Server, error) {
	if sim == nil {
		return nil, errors.New("simulation must not be nil")
	}

	opts := Options{
		Addr:         "127.0.0.1:8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		sim:     sim,
		metrics: NewMetrics(),
		logger:  opts.Logger,
		opts:    opts,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger())
	e.Use(s.metrics.Middleware())

	s.registerRoutes()

	return s, nil
}

// requestLogger logs one line per request through the configured logger.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			s.logger.Info("http request",
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", c.Response().Status,
				"duration", time.Since(start).String(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)

			return err
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/scenario", s.handleScenario)
	v1.POST("/sessions", s.handleIntake)
	v1.GET("/sessions/:id", s.handleGetSession)
	v1.DELETE("/sessions/:id", s.handleEndSession)
	v1.POST("/sessions/:id/turns", s.handleSubmitTurn)
	v1.POST("/sessions/:id/debrief", s.handleDebrief)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ScenarioResponse describes the running case for trainee frontends.
type ScenarioResponse struct {
	Name         string `json:"name"`
	PatientName  string `json:"patient_name"`
	StudentLabel string `json:"student_label"`
	PatientLabel string `json:"patient_label"`
	Briefing     string `json:"briefing"`
}

// TurnRequest is the request body for POST /api/v1/sessions/:id/turns.
type TurnRequest struct {
	Message string `json:"message"`
}

// SessionResponse is the external view of a session. The pinned credential is
// never exposed.
type SessionResponse struct {
	ID           string    `json:"id"`
	Identity     string    `json:"identity"`
	DisplayName  string    `json:"display_name"`
	State        string    `json:"state"`
	WindowSize   int       `json:"window_size"`
	DebriefReady bool      `json:"debrief_ready"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}

func (s *Server) sessionResponse(sess *core.Session) SessionResponse {
	size := sess.Window().Size()
	return SessionResponse{
		ID:           sess.ID,
		Identity:     sess.Identity,
		DisplayName:  sess.DisplayName,
		State:        sess.State().String(),
		WindowSize:   size,
		DebriefReady: size >= s.sim.DebriefAfter(),
		Created:      sess.Created,
		Updated:      sess.Updated,
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleScenario(c echo.Context) error {
	scen := s.sim.Scenario()
	return c.JSON(http.StatusOK, ScenarioResponse{
		Name:         scen.Name,
		PatientName:  scen.PatientName,
		StudentLabel: scen.StudentLabel,
		PatientLabel: scen.PatientLabel,
		Briefing:     scen.Briefing,
	})
}

func (s *Server) handleIntake(c echo.Context) error {
	var req simulation.IntakeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	sess, err := s.sim.Intake(c.Request().Context(), req)
	if err != nil {
		return s.httpError(err)
	}

	s.metrics.RecordIntake()

	return c.JSON(http.StatusCreated, s.sessionResponse(sess))
}

func (s *Server) handleGetSession(c echo.Context) error {
	sess, err := s.sim.Session(c.Param("id"))
	if err != nil {
		return s.httpError(err)
	}

	return c.JSON(http.StatusOK, s.sessionResponse(sess))
}

func (s *Server) handleEndSession(c echo.Context) error {
	if err := s.sim.EndSession(c.Param("id")); err != nil {
		return s.httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSubmitTurn(c echo.Context) error {
	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	start := time.Now()
	result, err := s.sim.SubmitTurn(c.Request().Context(), c.Param("id"), req.Message)
	s.metrics.RecordTurn(outcomeFor(err), time.Since(start).Seconds())
	if err != nil {
		return s.httpError(err)
	}

	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleDebrief(c echo.Context) error {
	report, err := s.sim.Debrief(c.Request().Context(), c.Param("id"))
	s.metrics.RecordDebrief(outcomeFor(err))
	if err != nil {
		return s.httpError(err)
	}

	return c.JSON(http.StatusOK, report)
}

// httpError maps the simulation error taxonomy onto HTTP status codes. Model
// failures are the upstream's fault (502), transcript failures ours (500).
func (s *Server) httpError(err error) *echo.HTTPError {
	var invErr *invoker.InvocationError
	var storeErr *transcript.StoreError

	switch {
	case errors.Is(err, simulation.ErrNoIdentity), errors.Is(err, simulation.ErrEmptyMessage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, simulation.ErrWrongState), errors.Is(err, simulation.ErrDebriefLocked):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &invErr):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	case errors.As(err, &storeErr):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// Start begins serving and blocks until the server stops.
func (s *Server) Start() error {
	s.echo.Server.ReadTimeout = s.opts.ReadTimeout
	s.echo.Server.WriteTimeout = s.opts.WriteTimeout

	s.logger.Info("starting http server", "addr", s.opts.Addr)

	return s.echo.Start(s.opts.Addr)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
