package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) GetStatement(c *gin.Context) {
	scope, err := scopeFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	statement, err := s.statementSvc.Generate(c.Request.Context(), scope)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": statement})
}

func (s *Server) GetStatementPDF(c *gin.Context) {
	scope, err := scopeFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.statementSvc.RenderPDF(c.Request.Context(), scope)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `attachment; filename="statement-`+scope.Label()+`.pdf"`)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, doc)
}

func (s *Server) ListOutstanding(c *gin.Context) {
	rows, err := s.statementSvc.OutstandingBalances(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (s *Server) GetPatientFinancialSummary(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := snowflake.ParseString(id); err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	summary, err := s.statementSvc.PatientFinancialSummary(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}
