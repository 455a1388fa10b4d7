package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/membrane/internal/organization/domain"
)

type createOrganizationRequest struct {
	Name     string         `json:"name" binding:"required"`
	Metadata map[string]any `json:"metadata"`
}

type addMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role"`
}

type changeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type transferOwnershipRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (s *Server) CreateOrganization(c *gin.Context) {
	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.organizationSvc.CreateOrganization(c.Request.Context(), actorID(c), organizationdomain.CreateOrganizationRequest{
		Name:     req.Name,
		Metadata: req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, org)
}

func (s *Server) GetOrganization(c *gin.Context) {
	orgID, ok := pathID(c, "id")
	if !ok {
		return
	}

	org, err := s.organizationSvc.GetOrganization(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

func (s *Server) DeleteOrganization(c *gin.Context) {
	orgID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := s.organizationSvc.DeleteOrganization(c.Request.Context(), actorID(c), orgID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListMembers(c *gin.Context) {
	orgID, ok := pathID(c, "id")
	if !ok {
		return
	}

	members, err := s.organizationSvc.ListMembers(c.Request.Context(), actorID(c), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (s *Server) AddMember(c *gin.Context) {
	orgID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user id"))
		return
	}

	m, err := s.organizationSvc.AddMember(c.Request.Context(), actorID(c), orgID, userID, req.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, m)
}

func (s *Server) RemoveMember(c *gin.Context) {
	orgID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	if err := s.organizationSvc.RemoveMember(c.Request.Context(), actorID(c), orgID, userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ChangeRole(c *gin.Context) {
	orgID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	var req changeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	m, err := s.organizationSvc.ChangeRole(c.Request.Context(), actorID(c), orgID, userID, req.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, m)
}

func (s *Server) TransferOwnership(c *gin.Context) {
	orgID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req transferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	targetID, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user id"))
		return
	}

	m, err := s.organizationSvc.TransferOwnership(c.Request.Context(), actorID(c), orgID, targetID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, m)
}

func pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.Param(name))
	if raw == "" {
		AbortWithError(c, newValidationError(name, "required", name+" is required"))
		return 0, false
	}
	parsed, err := snowflake.ParseString(raw)
	if err != nil {
		AbortWithError(c, newValidationError(name, "invalid", "invalid "+name))
		return 0, false
	}
	return parsed, true
}
