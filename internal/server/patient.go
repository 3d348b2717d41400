package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	patientdomain "github.com/smallbiznis/medledger/internal/patient/domain"
)

func (s *Server) CreatePatient(c *gin.Context) {
	var req patientdomain.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("body", "invalid_json", "invalid request body"))
		return
	}

	patient, err := s.patientSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": patient})
}

func (s *Server) ListPatients(c *gin.Context) {
	resp, err := s.patientSvc.List(c.Request.Context(), patientdomain.ListPatientRequest{
		PageToken: strings.TrimSpace(c.Query("page_token")),
		PageSize:  queryInt32(c, "page_size", 50),
		LastName:  strings.TrimSpace(c.Query("last_name")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Patients, "page_info": resp.PageInfo})
}

func (s *Server) GetPatientByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := snowflake.ParseString(id); err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	patient, err := s.patientSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": patient})
}

func (s *Server) UpdatePatient(c *gin.Context) {
	var req patientdomain.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("body", "invalid_json", "invalid request body"))
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	patient, err := s.patientSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": patient})
}
