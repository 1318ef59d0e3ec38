package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleSystemAdmin = "system_admin"
	RoleSchoolAdmin = "school_admin"
	RoleTeacher     = "teacher"
)

// ValidRole reports whether role is one the API issues tokens for.
func ValidRole(role string) bool {
	switch role {
	case RoleSystemAdmin, RoleSchoolAdmin, RoleTeacher:
		return true
	}
	return false
}

// JSONB custom type for JSON fields
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = make(JSONB)
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return nil
	}
}

// ToJSONB snapshots any JSON-serialisable value for the audit log.
func ToJSONB(v interface{}) JSONB {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	out := JSONB{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Base model with UUID
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// School is the tenant boundary. Every distribution belongs to one school.
type School struct {
	BaseModel
	Name         string `gorm:"type:varchar(255);not null" json:"name"`
	Type         string `gorm:"type:varchar(20)" json:"type"`
	Address      string `gorm:"type:text" json:"address"`
	Country      string `gorm:"type:varchar(100)" json:"country"`
	ContactEmail string `gorm:"type:varchar(255)" json:"contact_email"`
	Phone        string `gorm:"type:varchar(50)" json:"phone"`
	Config       JSONB  `gorm:"type:json" json:"config"`
}

// User represents system users (admin/teacher)
type User struct {
	BaseModel
	SchoolID     *uuid.UUID `gorm:"type:char(36);index" json:"school_id"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Role         string     `gorm:"type:varchar(20);not null" json:"role"`
	FullName     string     `gorm:"type:varchar(255);not null" json:"full_name"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	School       *School    `gorm:"foreignKey:SchoolID" json:"school,omitempty"`
}

// AuditLog tracks all data changes
type AuditLog struct {
	ID           uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	ActorUserID  uuid.UUID  `gorm:"type:char(36);index" json:"actor_user_id"`
	SchoolID     *uuid.UUID `gorm:"type:char(36);index" json:"school_id,omitempty"`
	Action       string     `gorm:"type:varchar(50);not null" json:"action"`
	ResourceType string     `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   uuid.UUID  `gorm:"type:char(36);index" json:"resource_id"`
	Before       JSONB      `gorm:"type:json" json:"before"`
	After        JSONB      `gorm:"type:json" json:"after"`
	Timestamp    time.Time  `gorm:"autoCreateTime;index" json:"timestamp"`
	IP           string     `gorm:"type:varchar(45)" json:"ip"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// RefreshToken stores refresh tokens for revocation
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:char(36);not null;index" json:"user_id"`
	Token     string    `gorm:"type:varchar(500);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	Revoked   bool      `gorm:"default:false;index" json:"revoked"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (r *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
