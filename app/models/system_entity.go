package models

import "time"

const (
	SystemEntityKindProject    = "project"
	SystemEntityKindContractor = "contractor"

	// Well-known ids for the default reference rows every new tenant gets.
	DefaultProjectEntityID    = "proj_default"
	DefaultContractorEntityID = "cont_default"
)

// SystemEntity is a default reference row a new tenant needs (a catch-all
// project and a catch-all contractor). Keyed by (company_id, entity_id)
// where entity_id is a well-known constant per entity kind.
type SystemEntity struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CompanyID string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_system_entities_company_entity,priority:1" json:"company_id"`
	EntityID  string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_system_entities_company_entity,priority:2" json:"entity_id"`
	Kind      string    `gorm:"type:varchar(32);not null" json:"kind"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
