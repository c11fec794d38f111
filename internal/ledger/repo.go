package ledger

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/playforge/payments-backend/pkg/db/models"
	"github.com/playforge/payments-backend/pkg/enums"
)

// StatusUpdate carries the fields a reconciliation transition may write.
type StatusUpdate struct {
	Status        enums.TransactionStatus
	FailureReason *string
}

// Repository manages persistence for payment transactions. FindByID and
// FindByProviderReferenceID return (nil, nil) when no record matches so
// webhook replays for unknown references never error.
type Repository interface {
	Create(ctx context.Context, txn *models.Transaction) error
	FindByID(ctx context.Context, id string) (*models.Transaction, error)
	FindByProviderReferenceID(ctx context.Context, ref string) (*models.Transaction, error)
	// TransitionStatus atomically moves the record for ref from pending to
	// update.Status and reports whether a row changed. The guard on the
	// current status is what makes terminal states absorbing under
	// concurrent deliveries.
	TransitionStatus(ctx context.Context, ref string, update StatusUpdate) (bool, error)
	List(ctx context.Context) ([]models.Transaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	prepareForCreate(txn)
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&txn).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindByProviderReferenceID(ctx context.Context, ref string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).
		Where("provider_reference_id = ?", ref).
		First(&txn).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repository) TransitionStatus(ctx context.Context, ref string, update StatusUpdate) (bool, error) {
	fields := map[string]any{
		"status":     update.Status,
		"updated_at": time.Now().UTC(),
	}
	if update.FailureReason != nil {
		fields["failure_reason"] = update.FailureReason
	}
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("provider_reference_id = ? AND status = ?", ref, enums.TransactionStatusPending).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) List(ctx context.Context) ([]models.Transaction, error) {
	var txns []models.Transaction
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func prepareForCreate(txn *models.Transaction) {
	if txn.ID == "" {
		txn.ID = models.NewTransactionID()
	}
	if txn.Status == "" {
		txn.Status = enums.TransactionStatusPending
	}
	if txn.Rail == "" {
		txn.Rail = enums.PaymentRailCard
	}
	txn.Currency = strings.ToLower(strings.TrimSpace(txn.Currency))
}
