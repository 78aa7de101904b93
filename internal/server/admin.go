package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AdminAPI is the REST surface for operators and spectators: session
// listing, scores, the text board and participant statistics. Game play
// itself goes over the WebSocket connection.
type AdminAPI struct {
	logger  zerolog.Logger
	manager *SessionManager
	stats   *StatsStore
}

// NewAdminAPI creates the admin API.
func NewAdminAPI(manager *SessionManager, stats *StatsStore, logger zerolog.Logger) *AdminAPI {
	return &AdminAPI{
		logger:  logger.With().Str("component", "admin").Logger(),
		manager: manager,
		stats:   stats,
	}
}

// Router builds the gin engine with all admin routes.
func (a *AdminAPI) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	r.GET("/sessions", a.listSessions)
	r.POST("/sessions", a.createSession)
	r.GET("/sessions/:id", a.getSession)
	r.DELETE("/sessions/:id", a.endSession)
	r.GET("/sessions/:id/score", a.getScore)
	r.GET("/sessions/:id/board", a.getBoard)
	r.GET("/stats", a.allStats)
	r.GET("/stats/:name", a.getStats)

	return r
}

func (a *AdminAPI) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": a.manager.List()})
}

func (a *AdminAPI) createSession(c *gin.Context) {
	var req struct {
		BoardVisible *bool `json:"board_visible"`
	}
	// The body is optional; an empty request takes the server default.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	session := a.manager.Create(req.BoardVisible)
	c.JSON(http.StatusOK, gin.H{"session_id": session.ID()})
}

func (a *AdminAPI) getSession(c *gin.Context) {
	session, err := a.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session.PublicState())
}

func (a *AdminAPI) endSession(c *gin.Context) {
	if err := a.manager.End(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ended": true})
}

func (a *AdminAPI) getScore(c *gin.Context) {
	session, err := a.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	teamA, teamB := session.Scores()
	c.JSON(http.StatusOK, gin.H{
		"team_a": teamA,
		"team_b": teamB,
		"phase":  session.Phase().String(),
	})
}

func (a *AdminAPI) getBoard(c *gin.Context) {
	session, err := a.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	state := session.PublicState()
	if !state.BoardVisible {
		c.JSON(http.StatusForbidden, gin.H{"error": "board is hidden"})
		return
	}
	c.String(http.StatusOK, RenderBoard(state))
}

func (a *AdminAPI) allStats(c *gin.Context) {
	if a.stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stats disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"players": a.stats.All()})
}

func (a *AdminAPI) getStats(c *gin.Context) {
	if a.stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stats disabled"})
		return
	}
	stats, ok := a.stats.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such player"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
