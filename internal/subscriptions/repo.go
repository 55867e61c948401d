package subscriptions

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cancelmem/cancelmem-backend/pkg/db/models"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	"github.com/cancelmem/cancelmem-backend/pkg/pagination"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

// Repository handles subscription persistence, including proof documents and
// timeline events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	Save(ctx context.Context, sub *models.Subscription) error
	FindByID(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error)
	List(ctx context.Context, userID uuid.UUID, params ListParams) ([]models.Subscription, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	LockUser(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, userID, id uuid.UUID) (bool, error)
	CreateProofDocument(ctx context.Context, doc *models.ProofDocument) error
	DeleteProofDocument(ctx context.Context, subscriptionID, proofID uuid.UUID) (bool, error)
	AppendTimeline(ctx context.Context, events []models.TimelineEvent) error
	ListPage(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Subscription, error)
	ListReminderCandidates(ctx context.Context, from, to types.Date, cursor *pagination.Cursor, limit int) ([]models.Subscription, error)
	UpdateDerived(ctx context.Context, sub *models.Subscription) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(sub).Error
}

func (r *repository) Save(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(sub).Error
}

func (r *repository) FindByID(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.withChildren(r.db.WithContext(ctx)).
		Where("id = ? AND user_id = ?", id, userID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) List(ctx context.Context, userID uuid.UUID, params ListParams) ([]models.Subscription, error) {
	query := r.withChildren(r.db.WithContext(ctx)).Where("user_id = ?", userID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Intent != nil {
		query = query.Where("intent = ?", *params.Intent)
	}
	if params.Category != nil {
		query = query.Where("category = ?", *params.Category)
	}
	if search := strings.ToLower(strings.TrimSpace(params.Search)); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+search+"%")
	}

	direction := "ASC"
	if params.Desc {
		direction = "DESC"
	}
	switch params.Sort {
	case SortName:
		query = query.Order("LOWER(name) " + direction)
	case SortRenewal:
		query = query.Order("renewal_date " + direction)
	case SortCreated:
		query = query.Order("created_at " + direction)
	default:
		query = query.Order("cancel_by_date " + direction)
	}
	query = query.Order("id ASC")

	var subs []models.Subscription
	if err := query.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// LockUser holds a per-user lock until the surrounding transaction ends. It
// is a no-op on SQLite, which runs one writer at a time.
func (r *repository) LockUser(ctx context.Context, userID uuid.UUID) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", userID.String()).Error
}

// Delete removes the subscription and its children. Children are deleted
// explicitly so SQLite without foreign key enforcement behaves the same.
func (r *repository) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	db := r.db.WithContext(ctx)
	res := db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Subscription{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := db.Where("subscription_id = ?", id).Delete(&models.ProofDocument{}).Error; err != nil {
		return false, err
	}
	if err := db.Where("subscription_id = ?", id).Delete(&models.TimelineEvent{}).Error; err != nil {
		return false, err
	}
	if err := db.Where("subscription_id = ?", id).Delete(&models.ReminderDelivery{}).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *repository) CreateProofDocument(ctx context.Context, doc *models.ProofDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *repository) DeleteProofDocument(ctx context.Context, subscriptionID, proofID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND subscription_id = ?", proofID, subscriptionID).
		Delete(&models.ProofDocument{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) AppendTimeline(ctx context.Context, events []models.TimelineEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&events).Error
}

// ListPage walks every subscription in (created_at, id) order. Proof
// documents are preloaded since proof status is derived from them.
func (r *repository) ListPage(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Subscription, error) {
	query := r.db.WithContext(ctx).
		Preload("ProofDocuments", orderByPosition)
	query = afterCursor(query, cursor)

	var subs []models.Subscription
	if err := query.
		Order("created_at ASC").
		Order("id ASC").
		Limit(pagination.NormalizeBatch(limit)).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// ListReminderCandidates returns live, not-kept subscriptions whose cancel-by
// date falls within [from, to].
func (r *repository) ListReminderCandidates(ctx context.Context, from, to types.Date, cursor *pagination.Cursor, limit int) ([]models.Subscription, error) {
	query := r.db.WithContext(ctx).
		Where("status IN ?", []enums.SubscriptionStatus{enums.SubscriptionStatusActive, enums.SubscriptionStatusTrial}).
		Where("intent <> ?", enums.IntentKeep).
		Where("cancel_by_date >= ? AND cancel_by_date <= ?", from, to)
	query = afterCursor(query, cursor)

	var subs []models.Subscription
	if err := query.
		Order("created_at ASC").
		Order("id ASC").
		Limit(pagination.NormalizeBatch(limit)).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// UpdateDerived persists only the derived columns.
func (r *repository) UpdateDerived(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", sub.ID).
		UpdateColumns(map[string]any{
			"cancel_by_date": sub.CancelByDate,
			"proof_status":   sub.ProofStatus,
		}).Error
}

func (r *repository) withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("ProofDocuments", orderByPosition).
		Preload("Timeline", func(tx *gorm.DB) *gorm.DB { return tx.Order("sequence ASC") })
}

func orderByPosition(tx *gorm.DB) *gorm.DB {
	return tx.Order("position ASC")
}

func subscriptionCursor(sub *models.Subscription) pagination.Cursor {
	return pagination.Cursor{CreatedAt: sub.CreatedAt, ID: sub.ID}
}

func afterCursor(query *gorm.DB, cursor *pagination.Cursor) *gorm.DB {
	if cursor == nil {
		return query
	}
	return query.Where("(created_at > ?) OR (created_at = ? AND id > ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
}
