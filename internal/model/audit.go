package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditLogin      AuditAction = "login"
	AuditLogout     AuditAction = "logout"
	AuditUpdate     AuditAction = "update"
	AuditDelete     AuditAction = "delete"
	AuditRoleChange AuditAction = "role_change"
)

// AuditDetail is a JSON blob stored in the detail column.
type AuditDetail map[string]interface{}

func (d AuditDetail) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *AuditDetail) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("AuditDetail.Scan: type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, d)
}

// AuditEntry records one mutation performed through the dashboard.
type AuditEntry struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID uuid.UUID   `gorm:"type:uuid;not null;index" json:"session_id"`
	ActorID   string      `gorm:"type:varchar(32);not null;index" json:"actor_id"`
	Action    AuditAction `gorm:"type:varchar(32);not null" json:"action"`
	Entity    string      `gorm:"type:varchar(32);not null" json:"entity"`
	EntityID  string      `gorm:"type:varchar(128)" json:"entity_id,omitempty"`
	Detail    AuditDetail `gorm:"type:jsonb" json:"detail,omitempty"`
	CreatedAt time.Time   `gorm:"index" json:"created_at"`
}

func (AuditEntry) TableName() string { return "audit_entries" }
