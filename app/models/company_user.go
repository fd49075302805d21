package models

import "time"

const (
	UserRoleAdmin = "ADMIN"

	UserStatusActive = "active"
)

// CompanyUser links a user to a company. The first user of a tenant is
// created by the provisioning reconciler with the ADMIN role; creation is
// at most once per (company_id, user_id).
type CompanyUser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CompanyID string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_company_users_company_user,priority:1" json:"company_id"`
	UserID    string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_company_users_company_user,priority:2" json:"user_id"`
	Email     string    `gorm:"type:varchar(255)" json:"email"`
	Role      string    `gorm:"type:varchar(32);not null;default:'ADMIN'" json:"role"`
	Status    string    `gorm:"type:varchar(32);not null;default:'active'" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
