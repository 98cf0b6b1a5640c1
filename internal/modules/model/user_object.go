package model

import (
	"time"

	"github.com/google/uuid"
)

// UserObject is an owner-uploaded reusable asset (furniture, decor) that
// projects may reference by id. Projects hold weak references: deleting an
// object does not touch projects that referenced it.
type UserObject struct {
	ID      uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index:ix_user_object_owner_id" json:"owner_id"`

	DisplayName string `gorm:"type:text;not null" json:"display_name"`
	Category    string `gorm:"type:text;not null;default:'other'" json:"category"`

	AssetRef     string  `gorm:"type:text;not null" json:"asset_ref"`
	ThumbnailRef *string `gorm:"type:text" json:"thumbnail_ref"`
	Description  *string `gorm:"type:text" json:"description"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (UserObject) TableName() string { return "user_objects" }
