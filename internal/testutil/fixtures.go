package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/arcadenet/netplay/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionBuilder creates test sessions with a builder pattern
type SessionBuilder struct {
	code              string
	hostUserID        string
	romID             *string
	status            domain.SessionStatus
	expiresAt         time.Time
	externalSessionID *string
}

// NewSessionBuilder creates a new SessionBuilder with default values
func NewSessionBuilder() *SessionBuilder {
	suffix := uuid.New().String()[:8]
	return &SessionBuilder{
		code:       fmt.Sprintf("TEST%s", suffix[:4]),
		hostUserID: fmt.Sprintf("host_%s", suffix),
		status:     domain.SessionStatusActive,
		expiresAt:  time.Now().Add(15 * time.Minute),
	}
}

func (b *SessionBuilder) WithCode(code string) *SessionBuilder {
	b.code = code
	return b
}

func (b *SessionBuilder) WithHost(userID string) *SessionBuilder {
	b.hostUserID = userID
	return b
}

func (b *SessionBuilder) WithRomID(romID string) *SessionBuilder {
	b.romID = &romID
	return b
}

func (b *SessionBuilder) WithStatus(status domain.SessionStatus) *SessionBuilder {
	b.status = status
	return b
}

func (b *SessionBuilder) WithExpiresAt(expiresAt time.Time) *SessionBuilder {
	b.expiresAt = expiresAt
	return b
}

func (b *SessionBuilder) WithExternalSessionID(id string) *SessionBuilder {
	b.externalSessionID = &id
	return b
}

// Build creates the session and its host participant in the database
func (b *SessionBuilder) Build(t *testing.T, db *gorm.DB) *domain.Session {
	t.Helper()

	session := &domain.Session{
		ID:                uuid.New(),
		Code:              b.code,
		HostUserID:        b.hostUserID,
		RomID:             b.romID,
		Status:            b.status,
		ExpiresAt:         b.expiresAt,
		ExternalSessionID: b.externalSessionID,
	}
	if err := db.Create(session).Error; err != nil {
		t.Fatalf("failed to create test session: %v", err)
	}

	host := &domain.Participant{
		ID:        uuid.New(),
		SessionID: session.ID,
		UserID:    b.hostUserID,
		Role:      domain.RoleHost,
		JoinedAt:  time.Now(),
	}
	if err := db.Create(host).Error; err != nil {
		t.Fatalf("failed to create test host participant: %v", err)
	}

	var created domain.Session
	if err := db.Preload("Participants").First(&created, "id = ?", session.ID).Error; err != nil {
		t.Fatalf("failed to reload test session: %v", err)
	}
	return &created
}
