package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fachebot/meeting-issue-bot/internal/adapter"
	"github.com/fachebot/meeting-issue-bot/internal/domain"
	"github.com/fachebot/meeting-issue-bot/internal/extractor"
	"github.com/fachebot/meeting-issue-bot/internal/issues"
	"github.com/fachebot/meeting-issue-bot/internal/logger"
	"github.com/fachebot/meeting-issue-bot/internal/model"
	"github.com/fachebot/meeting-issue-bot/internal/pipeline"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ShutdownTimeout 优雅关闭的等待时长
const ShutdownTimeout = 10 * time.Second

// Deps HTTP 服务依赖
type Deps struct {
	Pipeline *pipeline.Pipeline
	Board    *issues.Board
	Files    *adapter.FileAdapter
	Meetings *model.MeetingModel
	Issues   *model.IssueModel
	Gatherer prometheus.Gatherer
}

type Server struct {
	echo *echo.Echo
	deps Deps
}

func New(deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Infof("[HTTP] %s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	s := &Server{echo: e, deps: deps}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.deps.Gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := s.echo.Group("/api")
	api.POST("/extract/text", s.extractText)
	api.POST("/extract/thread", s.extractThread)
	api.POST("/extract/file", s.extractFile)

	api.GET("/meeting", s.getMeeting)
	api.PUT("/meeting", s.putMeeting)
	api.GET("/pipeline", s.getState)
	api.POST("/pipeline/cancel", s.cancel)

	api.POST("/issues/synthesize", s.synthesize)
	api.GET("/issues", s.listIssues)
	api.GET("/issues/registered", s.listRegistered)
	api.GET("/issues/:id", s.getIssue)
	api.PUT("/issues/:id", s.putIssue)
	api.POST("/issues/:id/register", s.registerIssue)

	api.GET("/meetings", s.listMeetings)
	api.GET("/meetings/:id", s.getArchivedMeeting)
}

// ServeHTTP 实现 http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start 监听 addr 直到 Shutdown
func (s *Server) Start(addr string) error {
	logger.Infof("[HTTP] 服务已启动, 监听: %s", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type extractTextRequest struct {
	Text string `json:"text" validate:"required"`
}

type extractThreadRequest struct {
	Channel string                 `json:"channel"`
	Thread  *adapter.ThreadMessage `json:"thread" validate:"required_without=Demo"`
	Demo    bool                   `json:"demo"`
}

func (s *Server) extractText(c echo.Context) error {
	var req extractTextRequest
	if err := bind(c, &req); err != nil {
		return handleError(c, err)
	}

	in, err := adapter.FromText(req.Text)
	if err != nil {
		return handleError(c, err)
	}
	return s.extract(c, in)
}

func (s *Server) extractThread(c echo.Context) error {
	var req extractThreadRequest
	if err := bind(c, &req); err != nil {
		return handleError(c, err)
	}

	thread := extractor.DemoThread()
	if req.Thread != nil {
		thread = *req.Thread
	}
	in, err := adapter.FromThread(thread, req.Channel)
	if err != nil {
		return handleError(c, err)
	}
	return s.extract(c, in)
}

func (s *Server) extractFile(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return handleError(c, domain.Validationf("缺少上传文件: %v", err))
	}

	src, err := fh.Open()
	if err != nil {
		return handleError(c, domain.Validationf("读取上传文件失败: %v", err))
	}
	defer src.Close()

	info := adapter.FileInfo{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get(echo.HeaderContentType),
	}
	in, err := s.deps.Files.FromFile(c.Request().Context(), info, src)
	if err != nil {
		return handleError(c, err)
	}
	return s.extract(c, in)
}

func (s *Server) extract(c echo.Context, in adapter.Input) error {
	record, err := s.deps.Pipeline.Extract(c.Request().Context(), in)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

func (s *Server) getMeeting(c echo.Context) error {
	record := s.deps.Pipeline.Record()
	if record == nil {
		return handleError(c, domain.ErrNotFound)
	}
	return c.JSON(http.StatusOK, record)
}

// putMeeting 用原始 JSON 整体替换当前会议记录
func (s *Server) putMeeting(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return handleError(c, domain.Validationf("读取请求失败: %v", err))
	}
	record, err := s.deps.Pipeline.UpdateRecordJSON(raw)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

func (s *Server) getState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Pipeline.State())
}

func (s *Server) cancel(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"cancelled": s.deps.Pipeline.Cancel()})
}

func (s *Server) synthesize(c echo.Context) error {
	generated, err := s.deps.Pipeline.SynthesizeCurrent(c.Request().Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusCreated, generated)
}

func (s *Server) listIssues(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Board.List())
}

func (s *Server) getIssue(c echo.Context) error {
	issue, err := s.deps.Board.Get(c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, issue)
}

func (s *Server) putIssue(c echo.Context) error {
	var issue domain.GeneratedIssue
	if err := c.Bind(&issue); err != nil {
		return handleError(c, err)
	}
	issue.ID = c.Param("id")

	if err := s.deps.Board.Update(issue); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, issue)
}

func (s *Server) registerIssue(c echo.Context) error {
	ok := s.deps.Board.Register(c.Param("id"))
	return c.JSON(http.StatusAccepted, map[string]bool{"registering": ok})
}

func (s *Server) listRegistered(c echo.Context) error {
	list, err := s.deps.Issues.List(c.Request().Context(), limitParam(c))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) listMeetings(c echo.Context) error {
	list, err := s.deps.Meetings.List(c.Request().Context(), limitParam(c))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) getArchivedMeeting(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return handleError(c, domain.Validationf("无效的会议 id %q", c.Param("id")))
	}
	meeting, err := s.deps.Meetings.Get(c.Request().Context(), id)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, meeting)
}

func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}

// limitParam 读取 ?limit=，默认 50
func limitParam(c echo.Context) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		return 50
	}
	return limit
}
