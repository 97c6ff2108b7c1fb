package handlers

import (
	"net/http"

	"battery-dispatch/internal/api/models"
	"battery-dispatch/internal/strategy"

	"github.com/gin-gonic/gin"
)

var strategyDescriptions = map[string]string{
	strategy.NameMILP: "Mixed-integer optimizer with perfect foresight. Charges from the grid and discharges into deficits " +
		"to minimize the energy bill, subject to efficiency losses and linear capacity degradation.",
	strategy.NameIdle: "No battery activity. Every deficit is bought from the grid; useful as a baseline.",
}

// ListStrategies handles GET /api/v1/strategies
func ListStrategies(c *gin.Context) {
	names := strategy.Names()
	out := make([]models.StrategyInfo, 0, len(names))
	for _, name := range names {
		out = append(out, models.StrategyInfo{Name: name, Description: strategyDescriptions[name]})
	}
	c.JSON(http.StatusOK, gin.H{"strategies": out})
}
