package domain

import (
	"strings"
	"time"
)

// User represents an account that can own documents
type User struct {
	ID           uint64
	Name         string
	Email        string `gorm:"uniqueIndex"`
	Password     string `gorm:"-" json:"-"` // input only, not stored in db
	PasswordHash string `json:"-"`
	TokenVersion uint64 `gorm:"default:0"`
	IsActive     bool   `gorm:"default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SafeUser represents a user without sensitive information
type SafeUser struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

func (u *User) ToSafeUser() SafeUser {
	return SafeUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		IsActive:  u.IsActive,
	}
}

type Team struct {
	ID        uint64    `json:"id"`
	URL       string    `gorm:"uniqueIndex" json:"url"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type TeamMember struct {
	ID        uint64
	TeamID    uint64 `gorm:"uniqueIndex:idx_team_member"`
	UserID    uint64 `gorm:"uniqueIndex:idx_team_member"`
	Role      string
	CreatedAt time.Time
}

// DocumentData is the reference to a document binary. Data holds either the
// base64 payload or the object key, depending on Type.
type DocumentData struct {
	ID   string `gorm:"primaryKey"`
	Type DocumentDataType
	Data string
}

type Document struct {
	ID             uint64
	Title          string
	Status         DocumentStatus `gorm:"index;default:DRAFT"`
	UserID         uint64         `gorm:"index"`
	User           User
	TeamID         *uint64 `gorm:"index"`
	Team           *Team
	DocumentDataID string
	DocumentData   *DocumentData `json:"-"`
	Recipients     []Recipient
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

func (d *Document) IsOwnedBy(userID uint64) bool {
	return d.UserID == userID
}

// RecipientByEmail finds the recipient entry addressed to email, if any.
func (d *Document) RecipientByEmail(email string) *Recipient {
	if email == "" {
		return nil
	}
	for i := range d.Recipients {
		if strings.EqualFold(d.Recipients[i].Email, email) {
			return &d.Recipients[i]
		}
	}
	return nil
}

// RecipientByToken finds the recipient holding token, if any.
func (d *Document) RecipientByToken(token string) *Recipient {
	if token == "" {
		return nil
	}
	for i := range d.Recipients {
		if d.Recipients[i].Token == token {
			return &d.Recipients[i]
		}
	}
	return nil
}

func (d *Document) BelongsToTeam(team *Team) bool {
	if team == nil || d.TeamID == nil {
		return false
	}
	return *d.TeamID == team.ID
}

type Recipient struct {
	ID            uint64
	DocumentID    uint64 `gorm:"index"`
	Email         string `gorm:"index"`
	Name          string
	Role          RecipientRole
	SigningStatus SigningStatus `gorm:"default:NOT_SIGNED"`
	Token         string        `gorm:"uniqueIndex"`
	SignedAt      *time.Time
	CreatedAt     time.Time
}

func (r *Recipient) HasSigned() bool {
	return r.SigningStatus == SigningStatusSigned
}

type DocumentShareLink struct {
	ID         uint64
	Slug       string `gorm:"uniqueIndex"`
	Email      string `gorm:"uniqueIndex:idx_share_document_email"`
	DocumentID uint64 `gorm:"uniqueIndex:idx_share_document_email"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Template struct {
	ID                     uint64    `json:"id"`
	Title                  string    `json:"title"`
	UserID                 uint64    `json:"user_id"`
	TeamID                 *uint64   `json:"team_id,omitempty"`
	TemplateDocumentDataID string    `json:"-"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

type AuditLogType string

const (
	AuditDocumentCreated    AuditLogType = "DOCUMENT_CREATED"
	AuditDocumentSent       AuditLogType = "DOCUMENT_SENT"
	AuditRecipientSigned    AuditLogType = "RECIPIENT_COMPLETED"
	AuditDocumentCompleted  AuditLogType = "DOCUMENT_COMPLETED"
	AuditDocumentDownloaded AuditLogType = "DOCUMENT_DOWNLOADED"
	AuditShareLinkCreated   AuditLogType = "SHARE_LINK_CREATED"
)

type DocumentAuditLog struct {
	ID         uint64       `json:"id"`
	DocumentID uint64       `gorm:"index" json:"document_id"`
	Type       AuditLogType `json:"type"`
	UserID     *uint64      `json:"user_id,omitempty"`
	Email      string       `json:"email"`
	Data       string       `json:"data,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}
