package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"fintracker/models"
)

// Memory keeps the whole ledger in process memory. A single mutex
// serializes every operation, which also makes the deposit
// read-modify-write atomic. Id counters only ever grow, so ids are never
// reused after deletion.
type Memory struct {
	mu sync.Mutex

	users      []models.User
	categories []models.Category
	records    []models.Record
	accounts   []models.Account

	nextUserID     uint
	nextCategoryID uint
	nextRecordID   uint
	nextAccountID  uint

	allowUnfiltered bool
}

// NewMemory returns an empty in-memory ledger. allowUnfiltered selects
// whether ListRecords accepts an empty filter.
func NewMemory(allowUnfiltered bool) *Memory {
	return &Memory{
		nextUserID:      1,
		nextCategoryID:  1,
		nextRecordID:    1,
		nextAccountID:   1,
		allowUnfiltered: allowUnfiltered,
	}
}

func (s *Memory) CreateUser(ctx context.Context, name string) (models.User, error) {
	if strings.TrimSpace(name) == "" {
		return models.User{}, ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	user := models.User{ID: s.nextUserID, Name: name, CreatedAt: time.Now().UTC()}
	s.nextUserID++
	s.users = append(s.users, user)
	return user, nil
}

func (s *Memory) GetUser(ctx context.Context, id uint) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, notFound("user", id)
}

func (s *Memory) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.User, len(s.users))
	copy(out, s.users)
	return out, nil
}

func (s *Memory) DeleteUser(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, u := range s.users {
		if u.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return notFound("user", id)
	}
	s.users = append(s.users[:idx], s.users[idx+1:]...)

	// Cascade: the user's account and records go with it.
	accounts := s.accounts[:0]
	for _, a := range s.accounts {
		if a.UserID != id {
			accounts = append(accounts, a)
		}
	}
	s.accounts = accounts

	records := s.records[:0]
	for _, r := range s.records {
		if r.UserID != id {
			records = append(records, r)
		}
	}
	s.records = records
	return nil
}

func (s *Memory) CreateCategory(ctx context.Context, name string) (models.Category, error) {
	if strings.TrimSpace(name) == "" {
		return models.Category{}, ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cat := models.Category{ID: s.nextCategoryID, Name: name, CreatedAt: time.Now().UTC()}
	s.nextCategoryID++
	s.categories = append(s.categories, cat)
	return cat, nil
}

func (s *Memory) ListCategories(ctx context.Context) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

func (s *Memory) DeleteCategory(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.categories {
		if c.ID == id {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			return nil
		}
	}
	return notFound("category", id)
}

func (s *Memory) CreateRecord(ctx context.Context, userID, categoryID uint, amount float64) (models.Record, error) {
	if amount <= 0 {
		return models.Record{}, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.userExists(userID) {
		return models.Record{}, notFound("user", userID)
	}
	if !s.categoryExists(categoryID) {
		return models.Record{}, notFound("category", categoryID)
	}

	rec := models.Record{
		ID:         s.nextRecordID,
		UserID:     userID,
		CategoryID: categoryID,
		Amount:     amount,
		Timestamp:  time.Now().UTC(),
	}
	s.nextRecordID++
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *Memory) GetRecord(ctx context.Context, id uint) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
	}
	return models.Record{}, notFound("record", id)
}

func (s *Memory) DeleteRecord(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return notFound("record", id)
}

func (s *Memory) ListRecords(ctx context.Context, filter RecordFilter) ([]models.Record, error) {
	if filter.isEmpty() && !s.allowUnfiltered {
		return nil, ErrMissingFilter
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Record, 0)
	for _, r := range s.records {
		if filter.UserID != nil && r.UserID != *filter.UserID {
			continue
		}
		if filter.CategoryID != nil && r.CategoryID != *filter.CategoryID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Memory) DepositIncome(ctx context.Context, userID uint, amount float64) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.userExists(userID) {
		return models.Account{}, notFound("user", userID)
	}
	if amount <= 0 {
		return models.Account{}, ErrInvalidAmount
	}

	for i := range s.accounts {
		if s.accounts[i].UserID == userID {
			s.accounts[i].Balance += amount
			return s.accounts[i], nil
		}
	}

	acct := models.Account{
		ID:        s.nextAccountID,
		UserID:    userID,
		Balance:   amount,
		CreatedAt: time.Now().UTC(),
	}
	s.nextAccountID++
	s.accounts = append(s.accounts, acct)
	return acct, nil
}

func (s *Memory) GetAccount(ctx context.Context, userID uint) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.UserID == userID {
			return a, nil
		}
	}
	return models.Account{}, notFound("account for user", userID)
}

func (s *Memory) userExists(id uint) bool {
	for _, u := range s.users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func (s *Memory) categoryExists(id uint) bool {
	for _, c := range s.categories {
		if c.ID == id {
			return true
		}
	}
	return false
}
