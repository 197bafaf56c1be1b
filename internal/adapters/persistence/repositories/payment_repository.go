package repositories

import (
	"context"

	"gorm.io/gorm"

	"edhub/internal/adapters/persistence/models"
)

// paymentRepository implements PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create creates a new payment record
func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// GetByID gets a payment by ID
func (r *paymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByMerchantRefNum gets a payment by its merchant reference
func (r *paymentRepository) GetByMerchantRefNum(ctx context.Context, merchantRefNum string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("merchant_ref_num = ?", merchantRefNum).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdateFields updates only the given columns so concurrent reconciliation
// never rewrites unrelated fields
func (r *paymentRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", id).Updates(fields).Error
}

// List lists payments with filters, search, sort and pagination
func (r *paymentRepository) List(ctx context.Context, filter PaymentFilter) ([]*models.Payment, int64, error) {
	var payments []*models.Payment
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Payment{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.CourseID != 0 {
		query = query.Where("course_id = ?", filter.CourseID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("merchant_ref_num LIKE ? OR customer_name LIKE ? OR customer_email LIKE ?", like, like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	switch filter.SortBy {
	case "amount":
		order = "amount"
	case "status":
		order = "status"
	}
	if filter.SortDesc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	err := query.Order(order).Offset(filter.Offset).Limit(filter.Limit).Find(&payments).Error
	if err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}
