package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	insurerdomain "github.com/smallbiznis/medledger/internal/insurer/domain"
)

func (s *Server) CreateInsurer(c *gin.Context) {
	var req insurerdomain.CreateInsurerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("body", "invalid_json", "invalid request body"))
		return
	}

	insurer, err := s.insurerSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": insurer})
}

func (s *Server) ListInsurers(c *gin.Context) {
	insurers, err := s.insurerSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": insurers})
}
