package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pennywise/internal/budget"
	apperrors "pennywise/internal/errors"
	"pennywise/internal/events"
	"pennywise/internal/models"
	"pennywise/internal/services"
	"pennywise/internal/uuid"
)

// GoalHandler handles goal ledger requests.
type GoalHandler struct {
	goalService  services.GoalServicer
	auditService services.AuditServicer
	publisher    events.Publisher
}

// NewGoalHandler creates a new GoalHandler.
func NewGoalHandler(goalService services.GoalServicer, auditService services.AuditServicer, publisher events.Publisher) *GoalHandler {
	return &GoalHandler{goalService: goalService, auditService: auditService, publisher: publisher}
}

// SetGoalRequest sets the goal of a category, or of the main budget of type
// when budget_category_id is omitted, from month/year onwards. type is
// optional for category goals and must match the category when given.
type SetGoalRequest struct {
	CategoryID *string           `json:"budget_category_id" binding:"omitempty,uuid_string"`
	Type       models.BudgetType `json:"type" binding:"required_without=CategoryID,omitempty,budget_type"`
	Goal       *decimal.Decimal  `json:"goal" binding:"required" swaggertype:"number"`
	Month      int               `json:"month" binding:"required,min=1,max=12"`
	Year       int               `json:"year" binding:"required,min=1800"`
}

func (r SetGoalRequest) key() services.GoalKey {
	if r.CategoryID == nil {
		return services.MainGoalKey(r.Type)
	}
	key := services.CategoryGoalKey(*r.CategoryID)
	key.Type = r.Type
	return key
}

// SetGoal handles upserting a goal record.
// @Summary     Set a goal
// @Description Record the goal for a period; it holds for every later period until the next record
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body SetGoalRequest true "Goal details"
// @Success     200 {object} models.GoalRecord "Stored goal record"
// @Failure     400 {object} ErrorResponse "Invalid input or future period"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /goals [put]
func (h *GoalHandler) SetGoal(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SetGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	if req.CategoryID != nil {
		id, _ := uuid.Parse(*req.CategoryID)
		req.CategoryID = &id
	}

	record, err := h.goalService.SetGoal(userID, req.key(), budget.NewPeriod(req.Month, req.Year), *req.Goal)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditSetGoal, "goal_record", record.ID, c.ClientIP(),
		map[string]interface{}{
			"budget_category_id": record.BudgetCategoryID,
			"type":               record.Type,
			"month":              record.Month,
			"year":               record.Year,
			"goal":               record.Goal.String(),
		})
	publish(c.Request.Context(), h.publisher, events.NewGoalSet(record))

	c.JSON(http.StatusOK, gin.H{"goal": record})
}

// GetGoalHistory handles listing every record of a goal series.
// @Summary     Goal history
// @Description List the explicitly set goals of a category, or of a main budget when budget_category_id is omitted
// @Tags        goals
// @Produce     json
// @Security    BearerAuth
// @Param       budget_category_id query string false "Category ID"
// @Param       type               query string false "Budget type, required without budget_category_id"
// @Success     200 {array}  models.GoalRecord "Records in ascending period order"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /goals/history [get]
func (h *GoalHandler) GetGoalHistory(c *gin.Context) {
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

	records, err := h.goalService.GetGoalHistory(userID, key)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goals": records})
}

// ResolveGoal handles resolving the goal in effect at a period.
// @Summary     Resolve a goal
// @Tags        goals
// @Produce     json
// @Security    BearerAuth
// @Param       budget_category_id query string false "Category ID"
// @Param       type               query string false "Budget type, required without budget_category_id"
// @Param       month              query int    true  "Month (1-12)"
// @Param       year               query int    true  "Year"
// @Success     200 {object} budget.Resolution "Goal in effect"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /goals/resolve [get]
func (h *GoalHandler) ResolveGoal(c *gin.Context) {
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

	res, err := h.goalService.ResolveGoal(userID, key, period)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"resolution": res})
}

// ResolveRange handles resolving every month of an inclusive range.
// @Summary     Resolve a goal range
// @Tags        goals
// @Produce     json
// @Security    BearerAuth
// @Param       budget_category_id query string false "Category ID"
// @Param       type               query string false "Budget type, required without budget_category_id"
// @Param       from_month         query int    true  "First month"
// @Param       from_year          query int    true  "First year"
// @Param       to_month           query int    true  "Last month"
// @Param       to_year            query int    true  "Last year"
// @Success     200 {array}  budget.Resolution "One resolution per month"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /goals/range [get]
func (h *GoalHandler) ResolveRange(c *gin.Context) {
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
	from, err := periodQuery(c, "from_month", "from_year")
	if err != nil {
		respondWithError(c, err)
		return
	}
	to, err := periodQuery(c, "to_month", "to_year")
	if err != nil {
		respondWithError(c, err)
		return
	}

	res, err := h.goalService.ResolveRange(userID, key, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"resolutions": res})
}

// goalKeyQuery selects a series from the budget_category_id and type query parameters.
func goalKeyQuery(c *gin.Context) (services.GoalKey, error) {
	var budgetType models.BudgetType
	if v := c.Query("type"); v != "" {
		budgetType = models.BudgetType(v)
		if !budgetType.Valid() {
			return services.GoalKey{}, apperrors.Field(apperrors.ErrValidation, "type", "type must be Income or Expenses")
		}
	}

	if v := c.Query("budget_category_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return services.GoalKey{}, apperrors.Field(apperrors.ErrValidation, "budget_category_id", "budget_category_id must be a UUID")
		}
		key := services.CategoryGoalKey(id)
		key.Type = budgetType
		return key, nil
	}

	if budgetType == "" {
		return services.GoalKey{}, apperrors.Field(apperrors.ErrValidation, "type", "type is required without budget_category_id")
	}
	return services.MainGoalKey(budgetType), nil
}
