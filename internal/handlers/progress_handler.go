package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "pennywise/internal/errors"
	"pennywise/internal/models"
	"pennywise/internal/services"
)

// ProgressHandler handles goal progress requests.
type ProgressHandler struct {
	progressService services.ProgressServicer
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(progressService services.ProgressServicer) *ProgressHandler {
	return &ProgressHandler{progressService: progressService}
}

// GetProgress handles comparing a goal with the period's transactions.
// @Summary     Goal progress
// @Description Progress of a category, or of the main budget of type when budget_category_id is omitted
// @Tags        progress
// @Produce     json
// @Security    BearerAuth
// @Param       budget_category_id query string false "Category ID"
// @Param       type               query string false "Budget type, required without budget_category_id"
// @Param       month              query int    true  "Month (1-12)"
// @Param       year               query int    true  "Year"
// @Success     200 {object} budget.Progress "Progress"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /progress [get]
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	key, err := goalKeyQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	period, err := periodQuery(c, "month", "year")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if key.IsMain() {
		progress, err := h.progressService.GetMainProgress(userID, key.Type, period)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"type": key.Type, "progress": progress})
		return
	}

	cp, err := h.progressService.GetCategoryProgress(userID, *key.CategoryID, period)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if key.Type != "" && key.Type != cp.Category.Type {
		respondWithError(c, apperrors.Field(apperrors.ErrValidation, "type", "category is an "+string(cp.Category.Type)+" category"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"type": cp.Category.Type, "budget_category": cp.Category, "progress": cp.Progress})
}

// GetOverview handles the progress of every category of a type.
// @Summary     Budget overview
// @Description Progress of every category of a type in display order, the main budget and the unallocated amount
// @Tags        progress
// @Produce     json
// @Security    BearerAuth
// @Param       type  query string true "Budget type (Income/Expenses)"
// @Param       month query int    true "Month (1-12)"
// @Param       year  query int    true "Year"
// @Success     200 {object} services.BudgetOverview "Overview"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /budget-overview [get]
func (h *ProgressHandler) GetOverview(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetType := models.BudgetType(c.Query("type"))
	if !budgetType.Valid() {
		respondWithError(c, apperrors.Field(apperrors.ErrValidation, "type", "type must be Income or Expenses"))
		return
	}
	period, err := periodQuery(c, "month", "year")
	if err != nil {
		respondWithError(c, err)
		return
	}

	overview, err := h.progressService.GetOverview(userID, budgetType, period)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"overview": overview})
}
