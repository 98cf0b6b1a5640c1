package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Project statuses. pending is the only non-terminal state.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Project is one generation job: the input image, the requested design
// parameters and, once terminal, either a result or an error.
//
// Exactly one of the following holds at all times:
//   - pending:   result, thumbnail and error are all NULL
//   - completed: result_image_ref is non-NULL, error_detail is NULL
//   - failed:    error_detail is non-NULL, result_image_ref is NULL
type Project struct {
	ID      uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index:ix_project_owner_id;index:ix_project_owner_created,priority:1" json:"owner_id"`

	InputImageRef string                         `gorm:"type:text;not null" json:"input_image_ref"`
	Params        DesignParams                   `gorm:"type:jsonb;not null" json:"params"`
	ObjectIDs     datatypes.JSONSlice[uuid.UUID] `gorm:"type:jsonb" json:"object_ids"`

	Status string `gorm:"type:text;not null;default:'pending';check:status IN ('pending','completed','failed');index:ix_project_status" json:"status"`

	ResultImageRef *string `gorm:"type:text" json:"result_image_ref"`
	ThumbnailRef   *string `gorm:"type:text" json:"thumbnail_ref"`
	Description    *string `gorm:"type:text" json:"description"`
	ErrorDetail    *string `gorm:"type:text" json:"error_detail"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP;index:ix_project_owner_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// DesignParams are the user-chosen generation parameters, immutable once the
// job is created.
type DesignParams struct {
	Style         string `json:"style"`
	RoomType      string `json:"room_type"`
	ColorTone     string `json:"color_tone,omitempty"`
	View          string `json:"view,omitempty"`
	RenderingType string `json:"rendering_type,omitempty"`
	Prompt        string `json:"prompt,omitempty"`
}

// Scan implements the sql.Scanner interface for DesignParams
func (p *DesignParams) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value")
	}
	return json.Unmarshal(bytes, p)
}

// Value implements the driver.Valuer interface for DesignParams
func (p DesignParams) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (Project) TableName() string { return "projects" }
