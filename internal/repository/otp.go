package repository

import (
	"context"
	"errors"

	"zephyr/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OTPRepository stores pending OTP challenges keyed by email.
type OTPRepository interface {
	Upsert(ctx context.Context, p *models.PendingSignup) error
	Get(ctx context.Context, email string) (*models.PendingSignup, error)
	Delete(ctx context.Context, email string) error
}

type otpRepository struct {
	db *gorm.DB
}

// NewOTPRepository returns a gorm-backed OTPRepository.
func NewOTPRepository(db *gorm.DB) OTPRepository {
	return &otpRepository{db: db}
}

// Upsert replaces any previous challenge for the same email.
func (r *otpRepository) Upsert(ctx context.Context, p *models.PendingSignup) error {
	err := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		UpdateAll: true,
	}).Create(p).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Get returns (nil, nil) when no challenge exists.
func (r *otpRepository) Get(ctx context.Context, email string) (*models.PendingSignup, error) {
	var p models.PendingSignup
	if err := conn(ctx, r.db).Where("email = ?", email).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &p, nil
}

func (r *otpRepository) Delete(ctx context.Context, email string) error {
	if err := conn(ctx, r.db).Where("email = ?", email).Delete(&models.PendingSignup{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
