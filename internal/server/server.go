// Package server exposes the search pipeline over a thin HTTP API.
package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/redwell/law-search/internal/pipeline"
	"github.com/redwell/law-search/internal/search"
)

// Server wraps a gin engine around the pipeline's read side.
type Server struct {
	engine    *gin.Engine
	processor *pipeline.Processor
	logger    *slog.Logger
}

func New(processor *pipeline.Processor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, processor: processor, logger: logger}
	engine.GET("/health", s.health)
	engine.GET("/search", s.search)
	engine.GET("/laws/:id", s.law)
	return s
}

// Handler returns the underlying http.Handler, used by tests and by
// callers that manage their own listener.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.engine.Run(addr)
}

func (s *Server) health(c *gin.Context) {
	if err := s.processor.Store().Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type searchResponse struct {
	Query   string         `json:"query"`
	Count   int            `json:"count"`
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Key           string             `json:"key"`
	LawID         string             `json:"law_id"`
	ArticleNumber string             `json:"article_number"`
	Content       string             `json:"content"`
	Category      string             `json:"category,omitempty"`
	Score         float64            `json:"score"`
	Channels      map[string]float64 `json:"channels,omitempty"`
}

func (s *Server) search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	results, err := s.processor.Search(c.Request.Context(), query, limit)
	if err != nil {
		s.logger.Error("search request failed", "query", query, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	resp := searchResponse{Query: query, Count: len(results)}
	for _, r := range results {
		resp.Results = append(resp.Results, searchResult{
			Key:           r.Record.Key,
			LawID:         r.Record.LawID,
			ArticleNumber: r.Record.ArticleNumber,
			Content:       r.Record.Content,
			Category:      r.Record.Category,
			Score:         r.Score,
			Channels:      channelScores(r.Channels),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func channelScores(channels map[search.Channel]float64) map[string]float64 {
	if len(channels) == 0 {
		return nil
	}
	out := make(map[string]float64, len(channels))
	for ch, score := range channels {
		out[string(ch)] = score
	}
	return out
}

type lawResponse struct {
	LawID     string        `json:"law_id"`
	Category  string        `json:"category,omitempty"`
	Fragments []lawFragment `json:"fragments"`
}

type lawFragment struct {
	Key           string `json:"key"`
	ArticleNumber string `json:"article_number"`
	Content       string `json:"content"`
	EffectiveDate string `json:"effective_date,omitempty"`
}

func (s *Server) law(c *gin.Context) {
	lawID := c.Param("id")
	records, err := s.processor.Store().GetByLawID(c.Request.Context(), lawID)
	if err != nil {
		s.logger.Error("law lookup failed", "law_id", lawID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "law not found"})
		return
	}

	resp := lawResponse{LawID: lawID, Category: records[0].Category}
	for _, rec := range records {
		resp.Fragments = append(resp.Fragments, lawFragment{
			Key:           rec.Key,
			ArticleNumber: rec.ArticleNumber,
			Content:       rec.Content,
			EffectiveDate: rec.EffectiveDate,
		})
	}
	c.JSON(http.StatusOK, resp)
}
