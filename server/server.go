// Package server exposes the dispatcher over HTTP.
//
// Every failure, whatever its cause, is answered with status 500 and
// {"error": message}; successes are 200 with {"result": value}.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/caffeineduck/scriptexec/dispatch"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	DefaultExecutePath = "/scripts"
	DefaultParamsPath  = "/params"
	DefaultNamespace   = "scriptexec"
	// DefaultMaxRequestSize leaves room for multipart framing around the
	// largest upload the resolver accepts.
	DefaultMaxRequestSize = 11 << 20
)

func init() {
	// Numbers in submitted parameters keep their literal form.
	binding.EnableDecoderUseNumber = true
}

// Server serves the execute and parameterized execute endpoints.
type Server struct {
	dispatcher  *dispatch.Dispatcher
	metrics     *Metrics
	logger      *zap.Logger
	executePath string
	paramsPath  string
	maxBody     int64
}

// Option configures a Server.
type Option func(*Server)

// WithExecutePath sets the execute route. Empty keeps the default.
func WithExecutePath(path string) Option {
	return func(s *Server) {
		if path != "" {
			s.executePath = path
		}
	}
}

// WithParamsPath sets the parameterized execute route. Empty keeps the
// default.
func WithParamsPath(path string) Option {
	return func(s *Server) {
		if path != "" {
			s.paramsPath = path
		}
	}
}

// WithMaxRequestSize bounds request bodies on the execute endpoints.
func WithMaxRequestSize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithMetrics replaces the collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a Server.
func New(d *dispatch.Dispatcher, opts ...Option) *Server {
	s := &Server{
		dispatcher:  d,
		logger:      zap.NewNop(),
		executePath: DefaultExecutePath,
		paramsPath:  DefaultParamsPath,
		maxBody:     DefaultMaxRequestSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(DefaultNamespace)
	}
	return s
}

// Handler builds the HTTP routes.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(requestID(), accessLog(s.logger, s.metrics), recovery(s.logger))

	r.POST(s.executePath, limitBody(s.maxBody), s.execute)
	r.POST(s.paramsPath, limitBody(s.maxBody), s.executeParams)
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	return r
}

// submissionRequest is the JSON body of both execute endpoints.
type submissionRequest struct {
	Script     string `json:"script"`
	Parameters any    `json:"parameters"`
	URL        string `json:"url"`
}

type resultResponse struct {
	Result any `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) execute(c *gin.Context) {
	ct := c.ContentType()
	ctx := c.Request.Context()

	switch {
	case ct == "application/json":
		sub, err := decodeSubmission(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		out, err := s.dispatcher.Execute(ctx, sub)
		s.respond(c, out, err)

	case strings.HasPrefix(ct, "multipart/form-data"):
		header, err := c.FormFile("file")
		if err != nil {
			if limited := limitError(err); limited != nil {
				err = limited
			}
			s.fail(c, fmt.Errorf("file: %w", err))
			return
		}
		file, err := header.Open()
		if err != nil {
			s.fail(c, err)
			return
		}
		defer file.Close()

		out, err := s.dispatcher.ExecuteUpload(ctx, file)
		s.respond(c, out, err)

	default:
		s.fail(c, fmt.Errorf("unsupported content type %q", ct))
	}
}

func (s *Server) executeParams(c *gin.Context) {
	sub, err := decodeSubmission(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	out, err := s.dispatcher.ExecuteParams(c.Request.Context(), sub)
	s.respond(c, out, err)
}

func (s *Server) respond(c *gin.Context, out *dispatch.Outcome, err error) {
	s.metrics.recordDispatch(out, err)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resultResponse{Result: out.Result})
}

func (s *Server) fail(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// decodeSubmission binds the JSON body. A parameters field that is absent or
// null yields nil; an empty string yields an empty list.
func decodeSubmission(c *gin.Context) (dispatch.Submission, error) {
	var req submissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if limited := limitError(err); limited != nil {
			return dispatch.Submission{}, limited
		}
		return dispatch.Submission{}, fmt.Errorf("invalid json: %w", err)
	}

	sub := dispatch.Submission{Script: req.Script, URL: req.URL}
	switch p := req.Parameters.(type) {
	case nil:
	case []any:
		sub.Parameters = p
	case string:
		if p != "" {
			return sub, errors.New("parameters must be a list")
		}
		sub.Parameters = []any{}
	default:
		return sub, errors.New("parameters must be a list")
	}
	return sub, nil
}

// limitError returns an error naming the body limit when err came from
// reading past it, and nil otherwise.
func limitError(err error) error {
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) {
		return nil
	}
	return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
}
