package models

import "time"

type Role struct {
	ID   int    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

type User struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	Email            string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash     string    `gorm:"not null" json:"-"`
	DisplayName      string    `json:"display_name"`
	IsActive         bool      `gorm:"not null;default:true" json:"is_active"`
	TwoFactorEnabled bool      `gorm:"not null;default:false" json:"two_factor_enabled"`
	Roles            []Role    `gorm:"many2many:user_roles" json:"roles"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Client struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyName    string    `gorm:"not null" json:"company_name"`
	ProductName    string    `gorm:"not null;size:30" json:"product_name"`
	ProductVersion string    `gorm:"not null;size:5"  json:"product_version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SessionRecord is the persisted state of one client session's auth progress.
// Token and principal columns are populated only while the session is
// authenticated; a cleared record is an anonymous one.
type SessionRecord struct {
	ID                 string     `gorm:"size:64;primaryKey" json:"id"`
	State              string     `gorm:"not null" json:"state"`
	PendingEmail       string     `json:"-"`
	Token              string     `json:"-"`
	TokenJTI           *string    `gorm:"size:64;index" json:"-"`
	TokenExpiry        *time.Time `json:"token_expiry,omitempty"`
	UserID             *string    `gorm:"type:uuid" json:"user_id,omitempty"`
	DisplayName        string     `json:"display_name,omitempty"`
	Roles              JSONB      `gorm:"type:jsonb" json:"roles,omitempty"`
	TwoFactorSatisfied bool       `gorm:"not null;default:false" json:"two_factor_satisfied"`
	Authenticated      bool       `gorm:"not null;default:false" json:"authenticated"`
	Loading            bool       `gorm:"not null;default:false" json:"loading"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// StepUpChallenge is a single-use two-factor code pending verification for
// the email it was issued to.
type StepUpChallenge struct {
	ID         string     `gorm:"size:64;primaryKey" json:"id"`
	Email      string     `gorm:"index;not null" json:"email"`
	Code       string     `gorm:"size:16;not null" json:"-"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// AuditEntry is an immutable record of one entity mutation. Rows are only
// ever inserted; nothing in this system updates or deletes them.
type AuditEntry struct {
	ID         string    `gorm:"size:64;primaryKey" json:"id"`
	EntityName string    `gorm:"not null;index" json:"entity_name"`
	Action     string    `gorm:"not null;index" json:"action"`
	OldValues  *JSONB    `gorm:"type:jsonb" json:"old_values,omitempty"`
	NewValues  *JSONB    `gorm:"type:jsonb" json:"new_values,omitempty"`
	UserID     *string   `gorm:"type:uuid;index" json:"user_id,omitempty"`
	RequestIP  *string   `json:"request_ip,omitempty"`
	Endpoint   *string   `json:"endpoint,omitempty"`
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
}

// FailureEntry is an immutable record of one unhandled request failure.
// RequestBody is stored after sensitive-field masking.
type FailureEntry struct {
	ID           string    `gorm:"size:64;primaryKey" json:"id"`
	Message      string    `gorm:"not null" json:"message"`
	StackTrace   string    `gorm:"type:text" json:"stack_trace"`
	InnerMessage *string   `json:"inner_message,omitempty"`
	RequestPath  string    `json:"request_path"`
	HTTPMethod   string    `gorm:"size:10" json:"http_method"`
	RequestBody  *JSONB    `gorm:"type:jsonb" json:"request_body,omitempty"`
	StatusCode   int       `json:"status_code"`
	UserID       *string   `gorm:"type:uuid;index" json:"user_id,omitempty"`
	TraceID      string    `gorm:"size:64;index" json:"trace_id"`
	Timestamp    time.Time `gorm:"not null;index" json:"timestamp"`
}
