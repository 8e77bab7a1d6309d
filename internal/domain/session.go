package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusEnded   SessionStatus = "ended"
	SessionStatusExpired SessionStatus = "expired"
)

// Terminal reports whether the status can no longer change.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusEnded || s == SessionStatusExpired
}

type ParticipantRole string

const (
	RoleHost  ParticipantRole = "host"
	RoleGuest ParticipantRole = "guest"
)

// Session is a time-bounded netplay lobby identified by a short join code.
type Session struct {
	ID                uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Code              string         `json:"code" gorm:"uniqueIndex;not null"`
	HostUserID        string         `json:"hostUserId" gorm:"not null"`
	RomID             *string        `json:"romId"`
	Status            SessionStatus  `json:"status" gorm:"not null;default:'active'"`
	ExpiresAt         time.Time      `json:"expiresAt" gorm:"not null"`
	ExternalSessionID *string        `json:"externalSessionId"`
	SignalingPayload  datatypes.JSON `json:"-"`
	EndedAt           *time.Time     `json:"endedAt"`
	EndedByID         *string        `json:"endedById"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`

	// Relations
	Participants []Participant `json:"participants,omitempty" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// Participant is a user's membership record within a session.
type Participant struct {
	ID                    uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID             uuid.UUID       `json:"sessionId" gorm:"type:uuid;not null;uniqueIndex:idx_session_user"`
	UserID                string          `json:"userId" gorm:"not null;uniqueIndex:idx_session_user"`
	Role                  ParticipantRole `json:"role" gorm:"not null;default:'guest'"`
	ExternalParticipantID *string         `json:"externalParticipantId"`
	JoinedAt              time.Time       `json:"joinedAt"`
	LeftAt                *time.Time      `json:"leftAt"`
}

// HasParticipant reports whether userID already holds a membership row.
func (s *Session) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
