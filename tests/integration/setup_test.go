package integration

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pennywise/internal/budget"
	"pennywise/internal/events"
	"pennywise/internal/handlers"
	"pennywise/internal/logger"
	"pennywise/internal/middleware"
	"pennywise/internal/services"
	"pennywise/internal/testutil"
	"pennywise/internal/validator"
)

const (
	testJWTSecret = "integration-secret"
	testAPIKey    = "integration-api-key"
)

// currentPeriod is the reference period every test app runs at.
var currentPeriod = budget.NewPeriod(8, 2024)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
	Events *events.Recorder
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	// Services
	locker := services.NewKeyedLocker()
	categoryService := services.NewBudgetCategoryService(db, budget.DefaultNamingRules(), locker)
	goalService := services.NewGoalService(db, budget.FixedClock(currentPeriod), locker)
	sumService := services.NewTransactionSumService(db, time.UTC)
	progressService := services.NewProgressService(categoryService, goalService, sumService)
	auditService := services.NewAuditService(db)
	recorder := &events.Recorder{}

	// Handlers
	categoryHandler := handlers.NewBudgetCategoryHandler(categoryService, auditService, recorder)
	goalHandler := handlers.NewGoalHandler(goalService, auditService, recorder)
	progressHandler := handlers.NewProgressHandler(progressService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	protected := router.Group("/api/v1")
	protected.Use(middleware.AuthMiddleware(testJWTSecret))

	categories := protected.Group("/budget-categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetCategories)
	categories.PUT("/order", categoryHandler.ReorderCategories)
	categories.GET("/:id", categoryHandler.GetCategory)
	categories.PUT("/:id", categoryHandler.RenameCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	goals := protected.Group("/goals")
	goals.PUT("", goalHandler.SetGoal)
	goals.GET("/history", goalHandler.GetGoalHistory)
	goals.GET("/resolve", goalHandler.ResolveGoal)
	goals.GET("/range", goalHandler.ResolveRange)

	protected.GET("/progress", progressHandler.GetProgress)
	protected.GET("/budget-overview", progressHandler.GetOverview)

	internal := router.Group("/api/internal", middleware.ServiceKeyMiddleware(testAPIKey))
	reporting := internal.Group("/users/:user_id", middleware.UserFromPath())
	reporting.GET("/progress", progressHandler.GetProgress)
	reporting.GET("/budget-overview", progressHandler.GetOverview)

	return &testApp{DB: db, Router: router, Events: recorder}
}

// newUser returns a fresh user ID with a signed access token.
func newUser(t *testing.T) (userID, token string) {
	t.Helper()
	userID = testutil.NewTestUserID()
	token, err := middleware.GenerateAccessToken(userID, "ledger@test.com", testJWTSecret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return userID, token
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// internalRequest calls the service-key protected routes.
func (app *testApp) internalRequest(path, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// errorCode extracts error.code from an error response.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseJSON(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// createCategory creates a category through the API and returns its ID.
func (app *testApp) createCategory(t *testing.T, token, name, budgetType string) string {
	t.Helper()
	rec := app.request("POST", "/api/v1/budget-categories",
		`{"name":"`+name+`","type":"`+budgetType+`"}`, token)
	if rec.Code != 201 {
		t.Fatalf("expected 201 creating category, got %d: %s", rec.Code, rec.Body.String())
	}
	category := parseJSON(t, rec)["budget_category"].(map[string]interface{})
	return category["budget_category_id"].(string)
}
