package api

import (
	"net/http"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/gin-gonic/gin"
)

type invalidateRequest struct {
	UserID string `json:"user_id"`
	engine.TranscriptRequest
}

func (s *Server) transcript(c *gin.Context) {
	var req engine.TranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, engine.Errorf(engine.KindValidation, "invalid request body", err))
		return
	}
	resp, err := s.deps.Transcripts.Transcript(c.Request.Context(), clientID(c, s.deps.TrustProxyHeaders), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) userMe(c *gin.Context) {
	id, err := s.deps.Verifier.Authorize(c.Request.Context(), c.Query("user_id"), c.GetHeader("Authorization"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id})
}

func (s *Server) invalidate(c *gin.Context) {
	var req invalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, engine.Errorf(engine.KindValidation, "invalid request body", err))
		return
	}
	id, err := s.deps.Verifier.Authorize(c.Request.Context(), req.UserID, c.GetHeader("Authorization"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.enforceWrite(c, id); err != nil {
		writeError(c, err)
		return
	}
	removed, err := s.deps.Transcripts.Invalidate(c.Request.Context(), req.TranscriptRequest)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// enforceWrite applies the write policy to the user, or to the client
// address when no user is known.
func (s *Server) enforceWrite(c *gin.Context, userID string) error {
	if s.deps.WritePolicy == nil {
		return nil
	}
	principal := "ip:" + clientID(c, s.deps.TrustProxyHeaders)
	if userID != "" {
		principal = "user:" + userID
	}
	return s.deps.WritePolicy.Enforce(principal)
}
