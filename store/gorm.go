package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"fintracker/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm persists the ledger in Postgres. Deposits run inside a transaction
// holding a row lock on the account, so concurrent deposits to the same
// user serialize instead of losing updates.
type Gorm struct {
	db              *gorm.DB
	allowUnfiltered bool
}

// NewGorm wraps an open gorm connection. allowUnfiltered selects whether
// ListRecords accepts an empty filter.
func NewGorm(db *gorm.DB, allowUnfiltered bool) *Gorm {
	return &Gorm{db: db, allowUnfiltered: allowUnfiltered}
}

func (s *Gorm) CreateUser(ctx context.Context, name string) (models.User, error) {
	if strings.TrimSpace(name) == "" {
		return models.User{}, ErrEmptyName
	}
	user := models.User{Name: name}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *Gorm) GetUser(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, notFound("user", id)
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *Gorm) ListUsers(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0)
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Gorm) DeleteUser(ctx context.Context, id uint) error {
	// Deleted explicitly rather than relying on the FK cascade, so the
	// behavior holds even against a schema migrated without constraints.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("user", id)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Account{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", id).Delete(&models.Record{}).Error
	})
}

func (s *Gorm) CreateCategory(ctx context.Context, name string) (models.Category, error) {
	if strings.TrimSpace(name) == "" {
		return models.Category{}, ErrEmptyName
	}
	cat := models.Category{Name: name}
	if err := s.db.WithContext(ctx).Create(&cat).Error; err != nil {
		return models.Category{}, err
	}
	return cat, nil
}

func (s *Gorm) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := make([]models.Category, 0)
	if err := s.db.WithContext(ctx).Order("id").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Gorm) DeleteCategory(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Category{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("category", id)
	}
	return nil
}

func (s *Gorm) CreateRecord(ctx context.Context, userID, categoryID uint, amount float64) (models.Record, error) {
	if amount <= 0 {
		return models.Record{}, ErrInvalidAmount
	}
	rec := models.Record{
		UserID:     userID,
		CategoryID: categoryID,
		Amount:     amount,
		Timestamp:  time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("user", userID)
			}
			return err
		}
		var cat models.Category
		if err := tx.First(&cat, categoryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("category", categoryID)
			}
			return err
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return models.Record{}, err
	}
	return rec, nil
}

func (s *Gorm) GetRecord(ctx context.Context, id uint) (models.Record, error) {
	var rec models.Record
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Record{}, notFound("record", id)
		}
		return models.Record{}, err
	}
	return rec, nil
}

func (s *Gorm) DeleteRecord(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Record{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("record", id)
	}
	return nil
}

func (s *Gorm) ListRecords(ctx context.Context, filter RecordFilter) ([]models.Record, error) {
	if filter.isEmpty() && !s.allowUnfiltered {
		return nil, ErrMissingFilter
	}
	q := s.db.WithContext(ctx).Model(&models.Record{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	records := make([]models.Record, 0)
	if err := q.Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Gorm) DepositIncome(ctx context.Context, userID uint, amount float64) (models.Account, error) {
	var acct models.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("user", userID)
			}
			return err
		}
		if amount <= 0 {
			return ErrInvalidAmount
		}

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&acct).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// FOR UPDATE locks nothing when the row is absent, so two first
			// deposits can race here. DO NOTHING on the unique user_id; the
			// loser re-reads the winner's row under the lock.
			acct = models.Account{UserID: userID}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoNothing: true,
			}).Create(&acct)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
					Where("user_id = ?", userID).First(&acct).Error; err != nil {
					return err
				}
			}
		case err != nil:
			return err
		}

		acct.Balance += amount
		return tx.Model(&models.Account{}).
			Where("id = ?", acct.ID).
			Update("balance", acct.Balance).Error
	})
	if err != nil {
		return models.Account{}, err
	}
	return acct, nil
}

func (s *Gorm) GetAccount(ctx context.Context, userID uint) (models.Account, error) {
	var acct models.Account
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Account{}, notFound("account for user", userID)
		}
		return models.Account{}, err
	}
	return acct, nil
}
