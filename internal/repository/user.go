package repository

import (
	"context"
	"errors"

	"zephyr/internal/cache"
	"zephyr/internal/models"
	"zephyr/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetWithPassword(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, id uint, fields map[string]any) error
	SetBlocked(ctx context.Context, id uint, blocked bool) error
	Search(ctx context.Context, q UserQuery) ([]models.User, error)
	List(ctx context.Context, search string, limit, offset int) ([]models.User, int64, error)
}

// UserQuery filters a directory search.
type UserQuery struct {
	Search         string
	ExcludeIDs     []uint
	ExcludeBlocked bool
	ExcludeAdmins  bool
	Limit          int
	Random         bool
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID reads through the Redis cache. The cached copy never carries the password hash.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		if err := conn(ctx, r.db).First(&user, id).Error; err != nil {
			return notFoundOr(err, "User", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetWithPassword(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "User", id)
	}
	return &user, nil
}

// GetByEmail returns (nil, nil) when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findBy(ctx, "email", email)
}

// GetByUsername returns (nil, nil) when the username is free.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findBy(ctx, "username", username)
}

// findBy looks a user up by a unique column; a miss is not an error.
func (r *userRepository) findBy(ctx context.Context, column, value string) (*models.User, error) {
	var user models.User
	err := conn(ctx, r.db).Where(column+" = ?", value).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := conn(ctx, r.db).Where("id IN ?", ids).Order("id ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := conn(ctx, r.db).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// UpdateFields applies a partial update and drops the cached profile.
func (r *userRepository) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	res := conn(ctx, r.db).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return models.NewConflictError("Username already taken")
		}
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	afterCommit(ctx, func(ctx context.Context) { cache.InvalidateUser(ctx, id) })
	return nil
}

func (r *userRepository) SetBlocked(ctx context.Context, id uint, blocked bool) error {
	return r.UpdateFields(ctx, id, map[string]any{"is_blocked": blocked})
}

func (r *userRepository) Search(ctx context.Context, q UserQuery) ([]models.User, error) {
	defer observability.TrackQuery("search", "users")()
	db := conn(ctx, r.db).Model(&models.User{})
	if q.Search != "" {
		p := likePattern(q.Search)
		db = db.Where(`(LOWER(username) LIKE ? ESCAPE '\' OR LOWER(display_name) LIKE ? ESCAPE '\')`, p, p)
	}
	if len(q.ExcludeIDs) > 0 {
		db = db.Where("id NOT IN ?", q.ExcludeIDs)
	}
	if q.ExcludeBlocked {
		db = db.Where("is_blocked = ?", false)
	}
	if q.ExcludeAdmins {
		db = db.Where("is_admin = ?", false)
	}
	if q.Random {
		db = db.Order("RANDOM()")
	} else {
		db = db.Order("username ASC")
	}

	var users []models.User
	if err := db.Limit(clampLimit(q.Limit, 10, 100)).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// List returns one page of users and the total matching count, newest first.
func (r *userRepository) List(ctx context.Context, search string, limit, offset int) ([]models.User, int64, error) {
	db := conn(ctx, r.db).Model(&models.User{})
	if search != "" {
		p := likePattern(search)
		db = db.Where(`(LOWER(username) LIKE ? ESCAPE '\' OR LOWER(display_name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`, p, p, p)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var users []models.User
	if err := db.Order("joined_at DESC").Limit(clampLimit(limit, 20, 100)).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}
