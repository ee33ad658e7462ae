package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/models"
	"market-pulse/src/session"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Collaborators
// -----------------------------------------------------------------------------

// FeedDirectory looks up feed pollers by name.
type FeedDirectory interface {
	GetFeed(name string) (interfaces.IFeedPoller, error)
	Health() []models.MFeedHealth
}

// FeedAdmin runs operator actions on the running feeds.
type FeedAdmin interface {
	FetchAll(ctx context.Context) map[string]int
	RemoveFeed(name string) error
}

// SessionReader recomputes the current session state.
type SessionReader interface {
	Current() (session.State, time.Time, error)
}

// APIDeps are the collaborators the HTTP routes read from. Any of them may
// be nil; the routes that need a missing one answer 503.
type APIDeps struct {
	Registry *ConnectionRegistry
	Frames   interfaces.IFrameHandler
	Feeds    FeedDirectory
	Admin    FeedAdmin
	Session  SessionReader
	DB       interfaces.IDatabase
	Location *time.Location
}

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

type APIServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	APIDeps

	engine     *gin.Engine
	httpServer *http.Server
}

var errUnavailable = errors.New("service unavailable")

// maxPageLimit caps ?limit= on paged routes.
const maxPageLimit = 100

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MConfig, deps APIDeps, log *logger.Logger) *APIServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.NewNop()
	}
	if deps.Registry == nil {
		deps.Registry = NewConnectionRegistry(log)
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}

	s := &APIServer{
		Config:  cfg,
		Logger:  log,
		APIDeps: deps,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLog())

	// CORS for local dashboards
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/finance/feeds/:name", s.getFeed)
	api.GET("/finance/cls-news", s.getClsNews)
	api.GET("/finance/market-effect", s.getMarketEffect)
	api.GET("/trade-calendar/status", s.getTradeStatus)
	api.GET("/market-activity/list", s.listMarketActivity)
	api.GET("/stock-info/:symbol", s.getStockInfo)

	// Operator actions
	api.POST("/feeds/refresh", s.refreshFeeds)
	api.DELETE("/feeds/:name", s.removeFeed)

	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for tests.
func (s *APIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start serves until Stop is called.
func (s *APIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Logger.Info("Starting server on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *APIServer) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// -----------------------------------------------------------------------------

func (s *APIServer) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("%s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	var feeds []models.MFeedHealth
	if s.Feeds != nil {
		feeds = s.Feeds.Health()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.Registry.Count(),
		"feeds":       feeds,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getFeed(c *gin.Context) {
	s.readFeed(c, c.Param("name"))
}

func (s *APIServer) getClsNews(c *gin.Context) {
	s.readFeed(c, models.FeedClsNews)
}

func (s *APIServer) readFeed(c *gin.Context, name string) {
	if s.Feeds == nil {
		respondError(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	feed, err := s.Feeds.GetFeed(name)
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	respondOK(c, feed.Read(c.Request.Context(), true))
}

// -----------------------------------------------------------------------------

func (s *APIServer) getTradeStatus(c *gin.Context) {
	if s.Session == nil {
		respondError(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	state, at, err := s.Session.Current()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondOK(c, state.Status(at))
}

// -----------------------------------------------------------------------------

func (s *APIServer) getMarketEffect(c *gin.Context) {
	if s.DB == nil {
		respondError(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	effect, err := s.DB.LatestMarketEffect(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if effect == nil {
		respondOK(c, nil)
		return
	}
	respondOK(c, effect)
}

// -----------------------------------------------------------------------------

// listMarketActivity pages through today's stored records, optionally
// narrowed by ?symbol=sector1,sector2.
func (s *APIServer) listMarketActivity(c *gin.Context) {
	if s.DB == nil {
		respondError(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}

	page := queryInt(c, "page", 1)
	limit := min(queryInt(c, "limit", 20), maxPageLimit)
	today := time.Now().In(s.Location).Format("2006-01-02")

	items, total, err := s.DB.FindMarketActivities(c.Request.Context(), today, splitList(c.Query("symbol")), page, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if items == nil {
		items = []models.MMarketActivity{}
	}

	respondOK(c, gin.H{
		"data":       items,
		"count":      len(items),
		"pagination": buildPagination(page, limit, total),
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getStockInfo(c *gin.Context) {
	if s.DB == nil {
		respondError(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	info, err := s.DB.GetStockInfo(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if info == nil {
		respondError(c, http.StatusNotFound, fmt.Errorf("stock %s not found", c.Param("symbol")))
		return
	}
	respondOK(c, info)
}

// -----------------------------------------------------------------------------

// refreshFeeds fetches every feed now, ignoring gates, and reports the delta
// size of each feed that succeeded.
func (s *APIServer) refreshFeeds(c *gin.Context) {
	if s.Admin == nil {
		respondError(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	results := s.Admin.FetchAll(c.Request.Context())
	s.Logger.Info("Manual refresh: %d feed(s) succeeded", len(results))
	respondOK(c, results)
}

// -----------------------------------------------------------------------------

// removeFeed stops polling a feed until the next restart.
func (s *APIServer) removeFeed(c *gin.Context) {
	if s.Admin == nil {
		respondError(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	name := c.Param("name")
	if err := s.Admin.RemoveFeed(name); err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	respondOK(c, gin.H{"removed": name})
}
