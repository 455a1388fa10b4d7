package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/membrane/internal/organization/domain"
)

type sendInviteRequest struct {
	Email string `json:"email" binding:"required"`
	Role  string `json:"role"`
}

type acceptInviteRequest struct {
	Token          string `json:"token" binding:"required"`
	SkipEmailCheck bool   `json:"skip_email_check"`
}

func (s *Server) ListInvitations(c *gin.Context) {
	orgID, ok := pathID(c, "id")
	if !ok {
		return
	}

	invites, err := s.organizationSvc.ListInvitations(c.Request.Context(), actorID(c), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitations": invites})
}

func (s *Server) SendInvite(c *gin.Context) {
	orgID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req sendInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	inv, err := s.organizationSvc.SendInvite(c.Request.Context(), actorID(c), orgID, organizationdomain.InviteRequest{
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, inv)
}

func (s *Server) ResendInvite(c *gin.Context) {
	inviteID, ok := pathID(c, "inviteId")
	if !ok {
		return
	}

	inv, err := s.organizationSvc.ResendInvite(c.Request.Context(), actorID(c), inviteID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

func (s *Server) AcceptInvite(c *gin.Context) {
	var req acceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	m, err := s.organizationSvc.AcceptInvite(c.Request.Context(), actorID(c), req.Token, organizationdomain.AcceptOptions{
		SkipEmailCheck: req.SkipEmailCheck,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, m)
}
