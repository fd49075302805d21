package provisioning

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/expensehq/expensehq/app/models"
	"github.com/expensehq/expensehq/internal/pkg/webhook"
)

// Repository provides the tenant-side DB operations the reconciler needs.
// The CreateXIfAbsent methods are the idempotent-create primitive: a
// conditional write that reports whether this caller performed the creation,
// with an already-existing row surfacing as created=false, never as an
// error.
type Repository interface {
	GetCompany(companyID string) (*models.Company, error)
	CreateCompanyIfAbsent(company *models.Company) (bool, error)
	UpdateCompanySubscription(companyID string, fields map[string]interface{}) error
	CreateCompanyUserIfAbsent(user *models.CompanyUser) (bool, error)
	CreateSystemEntityIfAbsent(entity *models.SystemEntity) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a provisioning repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetCompany(companyID string) (*models.Company, error) {
	var company models.Company
	err := r.db.Where("company_id = ?", companyID).First(&company).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, webhook.Classify(webhook.ClassTransient, err)
	}
	return &company, nil
}

func (r *gormRepository) CreateCompanyIfAbsent(company *models.Company) (bool, error) {
	return r.createIfAbsent(company, []clause.Column{{Name: "company_id"}})
}

// UpdateCompanySubscription updates only the subscription-derived columns,
// never the profile fields a human may have edited since creation.
func (r *gormRepository) UpdateCompanySubscription(companyID string, fields map[string]interface{}) error {
	err := r.db.Model(&models.Company{}).
		Where("company_id = ?", companyID).
		Updates(fields).Error
	return webhook.Classify(webhook.ClassTransient, err)
}

func (r *gormRepository) CreateCompanyUserIfAbsent(user *models.CompanyUser) (bool, error) {
	return r.createIfAbsent(user, []clause.Column{
		{Name: "company_id"},
		{Name: "user_id"},
	})
}

func (r *gormRepository) CreateSystemEntityIfAbsent(entity *models.SystemEntity) (bool, error) {
	return r.createIfAbsent(entity, []clause.Column{
		{Name: "company_id"},
		{Name: "entity_id"},
	})
}

// createIfAbsent inserts value unless a row with the same conflict key
// already exists. Losing the race to a concurrent insert is reported as
// created=false, not as an error.
func (r *gormRepository) createIfAbsent(value interface{}, conflictCols []clause.Column) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   conflictCols,
		DoNothing: true,
	}).Create(value)
	if tx.Error != nil {
		return false, webhook.Classify(webhook.ClassTransient, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}
