package user

import (
	"context"
	"errors"
	"strings"

	"github.com/Kyz7/authserver/internal/models"
	"github.com/samber/oops"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// Lookup selects a user by id or by email; the first non-zero field wins.
type Lookup struct {
	ID    uint
	Email string
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByIDOrEmail(ctx context.Context, q Lookup) (*models.User, error) {
	db := r.db.WithContext(ctx)
	switch {
	case q.ID != 0:
		db = db.Where("id = ?", q.ID)
	case q.Email != "":
		db = db.Where("email = ?", q.Email)
	default:
		return nil, ErrUserNotFound
	}

	var u models.User
	if err := db.First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, oops.Code("USER_LOOKUP_FAILED").Wrap(err)
	}
	return &u, nil
}

func (r *Repository) Create(ctx context.Context, email, passwordHash string) (*models.User, error) {
	u := models.User{Email: email, Password: passwordHash}
	if err := r.db.WithContext(ctx).Create(&u).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrUserExists
		}
		return nil, oops.Code("USER_CREATE_FAILED").Wrap(err)
	}
	return &u, nil
}

// UpdateProfile writes the display names and returns the refreshed record.
func (r *Repository) UpdateProfile(ctx context.Context, id uint, firstName, lastName string) (*models.User, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"first_name": firstName, "last_name": lastName})
	if result.Error != nil {
		return nil, oops.Code("USER_UPDATE_FAILED").Wrap(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return r.FindByIDOrEmail(ctx, Lookup{ID: id})
}

func (r *Repository) Delete(ctx context.Context, id uint) (*models.User, error) {
	u, err := r.FindByIDOrEmail(ctx, Lookup{ID: id})
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Delete(&models.User{}, id).Error; err != nil {
		return nil, oops.Code("USER_DELETE_FAILED").Wrap(err)
	}
	return u, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
