package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/finwhiz/retrieval"
)

// DefaultTopK is applied when a request omits top_k.
const DefaultTopK = retrieval.DefaultTopK

// RetrieveRequest is the body of POST /retrieve.
type RetrieveRequest struct {
	UserQuery string `json:"user_query"`
	TopK      *int   `json:"top_k"`
}

type RetrieveResponse struct {
	Context string `json:"context"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k"`
}

type QueryResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) retrieve(c *gin.Context) {
	var req RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	topK, ok := resolveTopK(c, req.TopK)
	if !ok {
		return
	}

	retrieved, err := s.retriever.Retrieve(c.Request.Context(), req.UserQuery, topK)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, RetrieveResponse{Context: retrieved})
}

func (s *Server) query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	topK, ok := resolveTopK(c, req.TopK)
	if !ok {
		return
	}

	answer, err := s.answerer.Answer(c.Request.Context(), req.Query, topK)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, QueryResponse{Answer: answer})
}

// resolveTopK applies the default top_k, writing a 400 when it is below 1.
func resolveTopK(c *gin.Context, topK *int) (int, bool) {
	if topK == nil {
		return DefaultTopK, true
	}
	if *topK < 1 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "top_k must be at least 1"})
		return 0, false
	}
	return *topK, true
}

func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Error("request failed", "request_id", RequestID(c), "path", c.FullPath(), "err", err)
	c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}
