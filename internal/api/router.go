package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"NewsAnalyst/internal/apperr"
	"NewsAnalyst/internal/domain"
	"NewsAnalyst/internal/render"
	"NewsAnalyst/internal/session"
	"NewsAnalyst/internal/sources"
	"NewsAnalyst/internal/usecase"
)

// Commands is what the router needs from the service layer.
type Commands interface {
	RunFetchCycle(ctx context.Context, trigger domain.FetchTrigger) (domain.FetchReport, error)
	FetchInfo() domain.FetchInfo
	AnswerQuestion(ctx context.Context, scope session.Scope, question string) (domain.SelectionResult, error)
	Browse(ctx context.Context, source string) ([]domain.Article, error)
	StartSelection(ctx context.Context, scope session.Scope, source string) (session.View, error)
	Toggle(scope session.Scope, index int) (session.View, error)
	SelectAll(scope session.Scope) (session.View, error)
	Selection(scope session.Scope) (session.View, error)
	Confirm(ctx context.Context, scope session.Scope, question string) (domain.SelectionResult, error)
	KeywordSelect(ctx context.Context, query string, limit int) ([]domain.Article, error)
	Stats(ctx context.Context) (domain.StoreStats, error)
	Sources(ctx context.Context) ([]usecase.SourceSummary, error)
	AnalyzeURL(ctx context.Context, url string) (usecase.PageAnalysis, error)
}

var _ Commands = (*usecase.Service)(nil)

type Router struct {
	e        *echo.Echo
	commands Commands
	registry *sources.Registry
}

func NewRouter(e *echo.Echo, commands Commands, registry *sources.Registry) *Router {
	return &Router{e: e, commands: commands, registry: registry}
}

func (r *Router) Bind() {
	r.e.POST("/fetch", r.fetchHandler)
	r.e.GET("/fetch/info", r.fetchInfoHandler)
	r.e.POST("/ask", r.askHandler)
	r.e.GET("/articles", r.articlesHandler)
	r.e.GET("/search", r.searchHandler)
	r.e.GET("/stats", r.statsHandler)
	r.e.GET("/sources", r.sourcesHandler)
	r.e.POST("/analyze", r.analyzeHandler)

	sel := r.e.Group("/selections/:user/:channel")
	sel.POST("", r.startSelectionHandler)
	sel.GET("", r.viewSelectionHandler)
	sel.POST("/picks/:number", r.toggleHandler)
	sel.POST("/all", r.selectAllHandler)
	sel.POST("/confirm", r.confirmHandler)
}

func (r *Router) fetchHandler(c echo.Context) error {
	// a client hanging up must not abort a cycle half way
	ctx := context.WithoutCancel(c.Request().Context())
	report, err := r.commands.RunFetchCycle(ctx, domain.TriggerManual)
	if err != nil {
		return err
	}
	if report.AlreadyRunning {
		return c.JSON(http.StatusAccepted, report)
	}
	return c.JSON(http.StatusOK, report)
}

func (r *Router) fetchInfoHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, r.commands.FetchInfo())
}

func (r *Router) askHandler(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewValidationWrap("invalid request body", err)
	}
	scope := session.Scope{UserID: req.UserID, ChannelID: req.ChannelID}
	if scope.UserID == "" {
		scope.UserID = "anonymous"
	}

	result, err := r.commands.AnswerQuestion(c.Request().Context(), scope, req.Question)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAnswerResponse(result, render.ParseTier(req.Form), r.registry.Tag))
}

func (r *Router) articlesHandler(c echo.Context) error {
	articles, err := r.commands.Browse(c.Request().Context(), c.QueryParam("source"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r.articlesResponse(articles))
}

func (r *Router) searchHandler(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return apperr.NewValidation("q parameter is required")
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return apperr.NewValidation("limit must be a positive number")
		}
		limit = n
	}

	articles, err := r.commands.KeywordSelect(c.Request().Context(), query, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r.articlesResponse(articles))
}

func (r *Router) statsHandler(c echo.Context) error {
	stats, err := r.commands.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	if stats.PerSourceCounts == nil {
		stats.PerSourceCounts = []domain.SourceCount{}
	}
	return c.JSON(http.StatusOK, stats)
}

func (r *Router) sourcesHandler(c echo.Context) error {
	list, err := r.commands.Sources(c.Request().Context())
	if err != nil {
		return err
	}
	if list == nil {
		list = []usecase.SourceSummary{}
	}
	return c.JSON(http.StatusOK, list)
}

func (r *Router) analyzeHandler(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewValidationWrap("invalid request body", err)
	}

	result, err := r.commands.AnalyzeURL(c.Request().Context(), req.URL)
	if err != nil {
		return err
	}
	result.Analysis, _ = render.Truncate(result.Analysis, render.ParseTier(req.Form))
	return c.JSON(http.StatusOK, result)
}

func (r *Router) startSelectionHandler(c echo.Context) error {
	scope, err := scopeParam(c)
	if err != nil {
		return err
	}
	var req StartSelectionRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewValidationWrap("invalid request body", err)
	}

	view, err := r.commands.StartSelection(c.Request().Context(), scope, strings.TrimSpace(req.Source))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, view)
}

func (r *Router) viewSelectionHandler(c echo.Context) error {
	scope, err := scopeParam(c)
	if err != nil {
		return err
	}
	view, err := r.commands.Selection(scope)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (r *Router) toggleHandler(c echo.Context) error {
	scope, err := scopeParam(c)
	if err != nil {
		return err
	}
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		return apperr.NewValidation("pick number must be a number")
	}

	// picks are numbered from 1 on the wire
	view, err := r.commands.Toggle(scope, number-1)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (r *Router) selectAllHandler(c echo.Context) error {
	scope, err := scopeParam(c)
	if err != nil {
		return err
	}
	view, err := r.commands.SelectAll(scope)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (r *Router) confirmHandler(c echo.Context) error {
	scope, err := scopeParam(c)
	if err != nil {
		return err
	}
	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewValidationWrap("invalid request body", err)
	}

	result, err := r.commands.Confirm(c.Request().Context(), scope, req.Question)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAnswerResponse(result, render.ParseTier(req.Form), r.registry.Tag))
}

func (r *Router) articlesResponse(articles []domain.Article) ArticlesResponse {
	out := make([]ArticleDTO, 0, len(articles))
	for _, a := range articles {
		out = append(out, toArticleDTO(a, r.registry.Tag(a.Source)))
	}
	return ArticlesResponse{Count: len(out), Articles: out}
}

func scopeParam(c echo.Context) (session.Scope, error) {
	scope := session.Scope{UserID: c.Param("user"), ChannelID: c.Param("channel")}
	if scope.UserID == "" || scope.ChannelID == "" {
		return scope, apperr.NewValidation("user and channel are required")
	}
	return scope, nil
}
