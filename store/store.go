package store

import (
	"context"
	"errors"
	"fmt"

	"fintracker/models"
)

// Error kinds. Every failure a Store returns wraps one of these so the HTTP
// layer can map it to a status code with errors.Is; anything else is an
// internal error.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)

var (
	ErrEmptyName     = fmt.Errorf("%w: name is required", ErrValidation)
	ErrInvalidAmount = fmt.Errorf("%w: amount must be a positive number", ErrValidation)
	ErrMissingFilter = fmt.Errorf("%w: at least one of user_id or category_id is required", ErrValidation)
)

func notFound(entity string, id uint) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// RecordFilter narrows ListRecords. Nil fields are ignored.
type RecordFilter struct {
	UserID     *uint
	CategoryID *uint
}

func (f RecordFilter) isEmpty() bool {
	return f.UserID == nil && f.CategoryID == nil
}

// Store is the ledger: all entity mutation and lookup flows through it.
// Listings are returned in creation order. DepositIncome is atomic per
// call: concurrent deposits to the same user never lose an update.
type Store interface {
	CreateUser(ctx context.Context, name string) (models.User, error)
	GetUser(ctx context.Context, id uint) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	// DeleteUser also removes the user's account and records.
	DeleteUser(ctx context.Context, id uint) error

	CreateCategory(ctx context.Context, name string) (models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	DeleteCategory(ctx context.Context, id uint) error

	// CreateRecord requires both the user and the category to exist.
	CreateRecord(ctx context.Context, userID, categoryID uint, amount float64) (models.Record, error)
	GetRecord(ctx context.Context, id uint) (models.Record, error)
	DeleteRecord(ctx context.Context, id uint) error
	ListRecords(ctx context.Context, filter RecordFilter) ([]models.Record, error)

	// DepositIncome lazily creates the user's account at zero balance, then
	// adds amount, as one atomic unit.
	DepositIncome(ctx context.Context, userID uint, amount float64) (models.Account, error)
	GetAccount(ctx context.Context, userID uint) (models.Account, error)
}
