// Package api provides the HTTP transport control for seqplay
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cbegin/seqplay-go"
	"github.com/cbegin/seqplay-go/internal/scheduler"
	"github.com/cbegin/seqplay-go/internal/timing"
)

// Transport is the player surface the server exposes.
type Transport interface {
	Status() seqplay.Status
	Play(ctx context.Context) error
	PlayFrom(ctx context.Context, seconds float64) error
	Pause()
	Seek(ctx context.Context, seconds float64) error
	SeekTicks(ctx context.Context, ticks int) error
	SeekBar(ctx context.Context, bar int) error
	Step(ctx context.Context, unit seqplay.StepUnit, n int) error
	Timing() *timing.Map
	PageBars() float64
}

type Server struct {
	t          Transport
	log        zerolog.Logger
	positionHz int
	upgrader   websocket.Upgrader
}

type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithPositionRate sets how many status frames per second the websocket
// stream sends.
func WithPositionRate(hz int) Option {
	return func(s *Server) {
		if hz > 0 {
			s.positionHz = hz
		}
	}
}

func New(t Transport, opts ...Option) *Server {
	s := &Server{
		t:          t,
		log:        zerolog.Nop(),
		positionHz: 20,
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())

	r.GET("/health", healthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/status", s.status)
		v1.POST("/play", s.play)
		v1.POST("/pause", s.pause)
		v1.POST("/seek", s.seek)
		v1.POST("/step", s.step)
		v1.GET("/barbeat", s.barBeat)
		v1.GET("/pages/:page", s.page)
		v1.GET("/ws", s.stream)
	}
	return r
}

// Run serves until ctx ends.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("api listening")
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "seqplay",
	})
}

func (s *Server) fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, scheduler.ErrPlaying), errors.Is(err, scheduler.ErrSuperseded):
		code = http.StatusConflict
	case errors.Is(err, scheduler.ErrNoExternalSource):
		code = http.StatusBadRequest
	}
	s.log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	c.JSON(code, gin.H{"error": err.Error()})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.t.Status())
}

type playRequest struct {
	From *float64 `json:"from"`
}

func (s *Server) play(c *gin.Context) {
	var req playRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	var err error
	if req.From != nil {
		err = s.t.PlayFrom(c.Request.Context(), *req.From)
	} else {
		err = s.t.Play(c.Request.Context())
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.t.Status())
}

func (s *Server) pause(c *gin.Context) {
	s.t.Pause()
	c.JSON(http.StatusOK, s.t.Status())
}

// seekRequest takes exactly one of seconds, ticks or bar.
type seekRequest struct {
	Seconds *float64 `json:"seconds"`
	Ticks   *int     `json:"ticks"`
	Bar     *int     `json:"bar"`
}

func (s *Server) seek(c *gin.Context) {
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	var err error
	switch {
	case req.Seconds != nil:
		err = s.t.Seek(ctx, *req.Seconds)
	case req.Ticks != nil:
		err = s.t.SeekTicks(ctx, *req.Ticks)
	case req.Bar != nil:
		err = s.t.SeekBar(ctx, *req.Bar)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "one of seconds, ticks or bar is required"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.t.Status())
}

type stepRequest struct {
	Unit string `json:"unit" binding:"required,oneof=beat bar page"`
	N    int    `json:"n"`
}

var stepUnits = map[string]seqplay.StepUnit{
	"beat": seqplay.StepBeat,
	"bar":  seqplay.StepBar,
	"page": seqplay.StepPage,
}

func (s *Server) step(c *gin.Context) {
	var req stepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.N == 0 {
		req.N = 1
	}
	if err := s.t.Step(c.Request.Context(), stepUnits[req.Unit], req.N); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.t.Status())
}

// barBeat answers ?ticks=N or ?seconds=S, defaulting to the current position.
func (s *Server) barBeat(c *gin.Context) {
	m := s.t.Timing()
	ticks := float64(m.SecondsToTicks(s.t.Status().Position))
	if v, ok := c.GetQuery("ticks"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad ticks"})
			return
		}
		ticks = f
	} else if v, ok := c.GetQuery("seconds"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad seconds"})
			return
		}
		ticks = float64(m.SecondsToTicks(f))
	}
	bb := m.BarBeatAtTicks(ticks)
	steps := m.SeekStepTicksAtTicks(ticks, s.t.PageBars())
	c.JSON(http.StatusOK, gin.H{
		"ticks":        ticks,
		"seconds":      m.TicksToSeconds(ticks),
		"bar":          bb.Bar,
		"beat":         bb.Beat,
		"sub_beat":     bb.SubBeat1000,
		"beats_in_bar": bb.BeatsInBar,
		"numerator":    bb.TimeSignature.Numerator,
		"denominator":  bb.TimeSignature.Denominator,
		"steps": gin.H{
			"beat": steps.Beat,
			"bar":  steps.Bar,
			"page": steps.Page,
		},
	})
}

func (s *Server) page(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("page"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a non-negative integer"})
		return
	}
	m := s.t.Timing()
	pb := s.t.PageBars()
	if idx >= m.PageCount(pb) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such page"})
		return
	}
	ticks := m.PageTickRange(float64(idx), pb)
	first := m.BarBeatAtTicks(float64(ticks.StartTick)).Bar
	bars := m.PageRangeForBar(float64(first), pb)
	c.JSON(http.StatusOK, gin.H{
		"page":          idx,
		"start_bar":     bars.StartBar,
		"end_bar":       bars.EndBar,
		"start_tick":    ticks.StartTick,
		"end_tick":      ticks.EndTick,
		"start_seconds": m.TicksToSeconds(float64(ticks.StartTick)),
		"end_seconds":   m.TicksToSeconds(float64(ticks.EndTick)),
	})
}

// stream pushes the status to a websocket client until it goes away.
func (s *Server) stream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(s.positionHz))
	defer ticker.Stop()
	for {
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteJSON(s.t.Status()); err != nil {
			s.log.Debug().Err(err).Msg("status stream closed")
			return
		}
		select {
		case <-gone:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
