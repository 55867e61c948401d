package entitlements

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
)

// Repository persists user plans.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.UserPlan, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*models.UserPlan, error)
	Save(ctx context.Context, plan *models.UserPlan) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a plan repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.UserPlan, error) {
	return r.first(r.db.WithContext(ctx).Where("user_id = ?", userID))
}

func (r *repository) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.UserPlan, error) {
	return r.first(r.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID))
}

// Save inserts the plan or overwrites the existing row for the user.
func (r *repository) Save(ctx context.Context, plan *models.UserPlan) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(plan).Error
}

func (r *repository) first(query *gorm.DB) (*models.UserPlan, error) {
	var plan models.UserPlan
	if err := query.First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}
