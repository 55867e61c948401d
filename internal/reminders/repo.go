package reminders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cancelmem/cancelmem-backend/pkg/db"
	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

// ErrAlreadyDelivered is returned when a delivery for the same deadline and
// offset was recorded concurrently. The only other unique key is the random
// primary key.
var ErrAlreadyDelivered = errors.New("reminder already delivered")

// DeliveryRepository records sent reminders.
type DeliveryRepository interface {
	Exists(ctx context.Context, subscriptionID uuid.UUID, cancelBy types.Date, offset int) (bool, error)
	Record(ctx context.Context, delivery *models.ReminderDelivery) error
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.ReminderDelivery, error)
}

type deliveryRepository struct {
	db *gorm.DB
}

func NewDeliveryRepository(conn *gorm.DB) DeliveryRepository {
	return &deliveryRepository{db: conn}
}

func (r *deliveryRepository) Exists(ctx context.Context, subscriptionID uuid.UUID, cancelBy types.Date, offset int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReminderDelivery{}).
		Where("subscription_id = ? AND cancel_by_date = ? AND offset_days = ?", subscriptionID, cancelBy, offset).
		Count(&count).Error
	return count > 0, err
}

func (r *deliveryRepository) Record(ctx context.Context, delivery *models.ReminderDelivery) error {
	if delivery.ID == uuid.Nil {
		delivery.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(delivery).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return ErrAlreadyDelivered
		}
		return err
	}
	return nil
}

func (r *deliveryRepository) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.ReminderDelivery, error) {
	var rows []models.ReminderDelivery
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("delivered_at ASC").
		Find(&rows).Error
	return rows, err
}
