package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cancelmem/cancelmem-backend/pkg/enums"
)

// UserPlan tracks a user's pricing tier and the Stripe objects backing it.
type UserPlan struct {
	UserID                   uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey"`
	Email                    *string    `gorm:"column:email;type:text"`
	Plan                     enums.Plan `gorm:"column:plan;type:text;not null"`
	StripeCustomerID         *string    `gorm:"column:stripe_customer_id;type:text;uniqueIndex:ux_user_plans_stripe_customer"`
	StripeSubscriptionID     *string    `gorm:"column:stripe_subscription_id;type:text"`
	StripeSubscriptionStatus *string    `gorm:"column:stripe_subscription_status;type:text"`
	CurrentPeriodEnd         *time.Time `gorm:"column:current_period_end"`
	CreatedAt                time.Time  `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt                time.Time  `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}
