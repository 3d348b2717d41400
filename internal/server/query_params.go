package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	statementdomain "github.com/smallbiznis/medledger/internal/statement/domain"
)

// scopeFromQuery resolves ?scope=all-outstanding or ?year=&month= into a
// statement scope. Range validation is left to the statement service.
func scopeFromQuery(c *gin.Context) (statementdomain.Scope, error) {
	if strings.EqualFold(strings.TrimSpace(c.Query("scope")), "all-outstanding") {
		return statementdomain.AllOutstandingScope(), nil
	}

	yearRaw := strings.TrimSpace(c.Query("year"))
	monthRaw := strings.TrimSpace(c.Query("month"))
	if yearRaw == "" || monthRaw == "" {
		return statementdomain.Scope{}, newValidationError("scope", "missing_scope", "provide year and month, or scope=all-outstanding")
	}

	year, err := strconv.Atoi(yearRaw)
	if err != nil {
		return statementdomain.Scope{}, newValidationError("year", "invalid_year", "year must be an integer")
	}
	month, err := strconv.Atoi(monthRaw)
	if err != nil {
		return statementdomain.Scope{}, newValidationError("month", "invalid_month", "month must be an integer")
	}

	return statementdomain.MonthScope(year, time.Month(month)), nil
}

func queryInt32(c *gin.Context, key string, def int32) int32 {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return def
	}
	return int32(parsed)
}
