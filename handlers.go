package main

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"fintracker/events"
	"fintracker/models"
	"fintracker/store"

	"github.com/gin-gonic/gin"
)

// api holds the handler dependencies: the ledger store and the event
// publisher.
type api struct {
	store  store.Store
	events events.Publisher
}

func setupRoutes(r *gin.Engine, a *api) {
	r.GET("/healthz", healthHandler)

	r.POST("/user", a.createUserHandler)
	r.GET("/user/:id", a.getUserHandler)
	r.DELETE("/user/:id", a.deleteUserHandler)
	r.GET("/users", a.listUsersHandler)

	r.POST("/category", a.createCategoryHandler)
	r.GET("/category", a.listCategoriesHandler)
	r.DELETE("/category/:id", a.deleteCategoryHandler)

	r.POST("/record", a.createRecordHandler)
	r.GET("/record", a.listRecordsHandler)
	r.GET("/record/:id", a.getRecordHandler)
	r.DELETE("/record/:id", a.deleteRecordHandler)

	r.POST("/account/:user_id/add_income", a.addIncomeHandler)
	r.GET("/account/:user_id", a.getAccountHandler)
}

func healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// respondStoreError maps store error kinds to HTTP statuses. Unclassified
// errors are logged and surfaced as an opaque 500.
func respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.ErrorContext(c.Request.Context(), "Store operation failed",
			"method", c.Request.Method, "url", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// parseID parses a numeric path parameter. A non-numeric id behaves like an
// unmatched resource (404), not a bad request.
func parseID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return 0, false
	}
	return uint(v), true
}

func (a *api) createUserHandler(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name field is required"})
		return
	}
	user, err := a.store.CreateUser(c.Request.Context(), req.Name)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (a *api) getUserHandler(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := a.store.GetUser(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (a *api) deleteUserHandler(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := a.store.DeleteUser(c.Request.Context(), id); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func (a *api) listUsersHandler(c *gin.Context) {
	users, err := a.store.ListUsers(c.Request.Context())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (a *api) createCategoryHandler(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name field is required"})
		return
	}
	cat, err := a.store.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func (a *api) listCategoriesHandler(c *gin.Context) {
	categories, err := a.store.ListCategories(c.Request.Context())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (a *api) deleteCategoryHandler(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := a.store.DeleteCategory(c.Request.Context(), id); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}

func (a *api) createRecordHandler(c *gin.Context) {
	// Pointer fields distinguish "absent" from zero values; the store owns
	// the range checks.
	var req struct {
		UserID     *uint    `json:"user_id" binding:"required"`
		CategoryID *uint    `json:"category_id" binding:"required"`
		Amount     *float64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}
	rec, err := a.store.CreateRecord(c.Request.Context(), *req.UserID, *req.CategoryID, *req.Amount)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	a.publishRecordCreated(c, rec)
	c.JSON(http.StatusCreated, rec)
}

func (a *api) getRecordHandler(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rec, err := a.store.GetRecord(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (a *api) deleteRecordHandler(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := a.store.DeleteRecord(c.Request.Context(), id); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Record deleted successfully"})
}

func (a *api) listRecordsHandler(c *gin.Context) {
	// A zero id never matches a row, so it counts as an absent filter.
	var filter store.RecordFilter
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be an integer"})
			return
		}
		if id != 0 {
			u := uint(id)
			filter.UserID = &u
		}
	}
	if v := c.Query("category_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "category_id must be an integer"})
			return
		}
		if id != 0 {
			cid := uint(id)
			filter.CategoryID = &cid
		}
	}
	records, err := a.store.ListRecords(c.Request.Context(), filter)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (a *api) addIncomeHandler(c *gin.Context) {
	userID, ok := parseID(c, "user_id")
	if !ok {
		return
	}
	// A missing or unreadable amount stays zero and is rejected by the
	// store, but only after the user lookup.
	var req struct {
		Amount float64 `json:"amount"`
	}
	_ = c.ShouldBindJSON(&req)
	acct, err := a.store.DepositIncome(c.Request.Context(), userID, req.Amount)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	a.publishIncomeDeposited(c, req.Amount, acct)
	c.JSON(http.StatusOK, acct)
}

func (a *api) getAccountHandler(c *gin.Context) {
	userID, ok := parseID(c, "user_id")
	if !ok {
		return
	}
	acct, err := a.store.GetAccount(c.Request.Context(), userID)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (a *api) publishRecordCreated(c *gin.Context, rec models.Record) {
	msg := events.RecordCreated{
		RecordID:   rec.ID,
		UserID:     rec.UserID,
		CategoryID: rec.CategoryID,
		Amount:     rec.Amount,
		Timestamp:  rec.Timestamp,
	}
	if err := a.events.PublishRecordCreated(c.Request.Context(), msg); err != nil {
		slog.WarnContext(c.Request.Context(), "Publish failed",
			"key", events.KeyRecordCreated, "record_id", rec.ID, "error", err)
	}
}

func (a *api) publishIncomeDeposited(c *gin.Context, amount float64, acct models.Account) {
	msg := events.IncomeDeposited{
		UserID:    acct.UserID,
		Amount:    amount,
		Balance:   acct.Balance,
		Timestamp: time.Now().UTC(),
	}
	if err := a.events.PublishIncomeDeposited(c.Request.Context(), msg); err != nil {
		slog.WarnContext(c.Request.Context(), "Publish failed",
			"key", events.KeyIncomeDeposited, "user_id", acct.UserID, "error", err)
	}
}
