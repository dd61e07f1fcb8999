package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "pennywise/internal/errors"
	"pennywise/internal/events"
	"pennywise/internal/models"
	"pennywise/internal/pagination"
	"pennywise/internal/services"
)

// BudgetCategoryHandler handles budget category requests.
type BudgetCategoryHandler struct {
	categoryService services.BudgetCategoryServicer
	auditService    services.AuditServicer
	publisher       events.Publisher
}

// NewBudgetCategoryHandler creates a new BudgetCategoryHandler.
func NewBudgetCategoryHandler(categoryService services.BudgetCategoryServicer, auditService services.AuditServicer, publisher events.Publisher) *BudgetCategoryHandler {
	return &BudgetCategoryHandler{categoryService: categoryService, auditService: auditService, publisher: publisher}
}

// CreateBudgetCategoryRequest represents the request payload for creating a category.
type CreateBudgetCategoryRequest struct {
	Type models.BudgetType `json:"type" binding:"required,budget_type"`
	Name string            `json:"name" binding:"required"`
}

// RenameBudgetCategoryRequest represents the request payload for renaming a category.
type RenameBudgetCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

// ReorderBudgetCategoriesRequest lists category IDs of one type in their new display order.
type ReorderBudgetCategoriesRequest struct {
	Type        models.BudgetType `json:"type" binding:"required,budget_type"`
	CategoryIDs []string          `json:"budget_category_ids" binding:"unique,dive,uuid_string"`
}

// CreateCategory handles the creation of a new budget category.
// @Summary     Create a budget category
// @Description Create an Income or Expenses category at the end of its type's display order
// @Tags        budget-categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBudgetCategoryRequest true "Category details"
// @Success     201 {object} models.BudgetCategory "Category created"
// @Failure     400 {object} ErrorResponse "Invalid or reserved name"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Duplicate name"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budget-categories [post]
func (h *BudgetCategoryHandler) CreateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	category, err := h.categoryService.CreateCategory(userID, req.Type, req.Name)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditCreateCategory, "budget_category", category.ID, c.ClientIP(),
		map[string]interface{}{"name": category.Name, "type": category.Type, "category_order": category.Order})

	c.JSON(http.StatusCreated, gin.H{"budget_category": category})
}

// GetCategories handles listing budget categories in display order.
// @Summary     List budget categories
// @Description Get a paginated list of the user's categories in display order
// @Tags        budget-categories
// @Produce     json
// @Security    BearerAuth
// @Param       type      query string false "Filter by type (Income/Expenses)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.BudgetCategory] "Paginated categories"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budget-categories [get]
func (h *BudgetCategoryHandler) GetCategories(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	var budgetType *models.BudgetType
	if v := c.Query("type"); v != "" {
		t := models.BudgetType(v)
		if !t.Valid() {
			respondWithError(c, apperrors.Field(apperrors.ErrValidation, "type", "type must be Income or Expenses"))
			return
		}
		budgetType = &t
	}

	result, err := h.categoryService.ListCategories(userID, budgetType, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCategory handles retrieving a single budget category.
// @Summary     Get budget category
// @Tags        budget-categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} models.BudgetCategory "Category"
// @Failure     400 {object} ErrorResponse "Invalid category ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /budget-categories/{id} [get]
func (h *BudgetCategoryHandler) GetCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	category, err := h.categoryService.GetCategory(userID, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget_category": category})
}

// RenameCategory handles renaming a budget category. The type cannot change.
// @Summary     Rename budget category
// @Tags        budget-categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                      true "Category ID"
// @Param       request body RenameBudgetCategoryRequest true "New name"
// @Success     200 {object} models.BudgetCategory "Renamed category"
// @Failure     400 {object} ErrorResponse "Invalid or reserved name"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     409 {object} ErrorResponse "Duplicate name"
// @Router      /budget-categories/{id} [put]
func (h *BudgetCategoryHandler) RenameCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RenameBudgetCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	category, err := h.categoryService.RenameCategory(userID, categoryID, req.Name)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditRenameCategory, "budget_category", category.ID, c.ClientIP(),
		map[string]interface{}{"name": category.Name})

	c.JSON(http.StatusOK, gin.H{"budget_category": category})
}

// DeleteCategory handles deleting a budget category together with its goals.
// @Summary     Delete budget category
// @Tags        budget-categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} MessageResponse "Category deleted"
// @Failure     400 {object} ErrorResponse "Invalid category ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /budget-categories/{id} [delete]
func (h *BudgetCategoryHandler) DeleteCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	category, err := h.categoryService.GetCategory(userID, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.categoryService.DeleteCategory(userID, categoryID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditDeleteCategory, "budget_category", categoryID, c.ClientIP(),
		map[string]interface{}{"name": category.Name, "type": category.Type})
	publish(c.Request.Context(), h.publisher, events.NewCategoryDeleted(userID, category))

	c.JSON(http.StatusOK, MessageResponse{Message: "Budget category deleted successfully"})
}

// ReorderCategories handles assigning a new display order to a type's categories.
// @Summary     Reorder budget categories
// @Description Assign order = position to each listed category; unlisted categories keep their order
// @Tags        budget-categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ReorderBudgetCategoriesRequest true "Type and ordered category IDs"
// @Success     200 {array}  models.BudgetCategory "Categories of the type in display order"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /budget-categories/order [put]
func (h *BudgetCategoryHandler) ReorderCategories(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ReorderBudgetCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	ordered, err := h.categoryService.ReorderCategories(userID, req.Type, req.CategoryIDs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if len(req.CategoryIDs) > 0 {
		h.auditService.Log(userID, services.AuditReorderCategories, "budget_category", "", c.ClientIP(),
			map[string]interface{}{"type": req.Type, "budget_category_ids": req.CategoryIDs})
		publish(c.Request.Context(), h.publisher, events.NewCategoriesReordered(userID, req.Type, ordered))
	}

	c.JSON(http.StatusOK, gin.H{"budget_categories": ordered})
}
