package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/library-min/TF-Planner-sub000/internal/directory"
	"github.com/library-min/TF-Planner-sub000/internal/session"
)

// SessionHandler issues tokens for the development identity flow. The real
// deployment fronts this service with the user service's auth; here any
// claimed identity is accepted and recorded in the user directory.
type SessionHandler struct {
	tokens *session.TokenManager
	users  *directory.UserDirectory
}

// NewSessionHandler builds a SessionHandler.
func NewSessionHandler(tokens *session.TokenManager, users *directory.UserDirectory) *SessionHandler {
	return &SessionHandler{tokens: tokens, users: users}
}

// CreateSession issues a signed token for the given identity.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req struct {
		UserID      string `json:"userId" binding:"required"`
		DisplayName string `json:"displayName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.DisplayName == "" {
		req.DisplayName = req.UserID
	}
	h.users.Upsert(req.UserID, req.DisplayName)

	token, err := h.tokens.Issue(session.Identity{UserID: req.UserID, DisplayName: req.DisplayName})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":       token,
		"userId":      req.UserID,
		"displayName": req.DisplayName,
	})
}

// ListUsers returns every user the directory has seen.
func (h *SessionHandler) ListUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.users.List()})
}
