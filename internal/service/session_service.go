package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arcadenet/netplay/internal/config"
	"github.com/arcadenet/netplay/internal/domain"
	"github.com/arcadenet/netplay/internal/repository"
	"github.com/arcadenet/netplay/internal/signaling"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionClosed   = errors.New("session is closed")
)

// SignalingClient is the outbound façade the service notifies about session
// lifecycle. A nil client disables all external calls.
type SignalingClient interface {
	CreateSession(ctx context.Context, req signaling.CreateSessionRequest) (*signaling.SessionCreated, error)
	AddParticipant(ctx context.Context, externalSessionID string, p signaling.Participant) (*signaling.ParticipantAdded, error)
	DeleteSession(ctx context.Context, externalSessionID string) error
}

// SessionService coordinates netplay lobbies: local transactional writes
// first, then the signaling API, with compensating deletes when the remote
// call fails on a creation path.
type SessionService struct {
	sessionRepo     repository.SessionRepository
	participantRepo repository.ParticipantRepository
	codes           *CodeAllocator
	signaling       SignalingClient
	cfg             *config.Config
	log             zerolog.Logger
	now             func() time.Time
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	participantRepo repository.ParticipantRepository,
	codes *CodeAllocator,
	signalingClient SignalingClient,
	cfg *config.Config,
	logger zerolog.Logger,
	now func() time.Time,
) *SessionService {
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		codes:           codes,
		signaling:       signalingClient,
		cfg:             cfg,
		log:             logger,
		now:             now,
	}
}

type CreateSessionInput struct {
	HostUserID string
	RomID      *string
	// TTL is the requested session lifetime. Zero or negative means "use
	// the configured default"; other values are clamped into bounds.
	TTL time.Duration
}

func (s *SessionService) CreateSession(ctx context.Context, input CreateSessionInput) (*domain.Session, error) {
	code, err := s.codes.GenerateUnique(ctx)
	if err != nil {
		return nil, err
	}

	ttl := s.resolveTTL(input.TTL)
	now := s.now()

	session := &domain.Session{
		ID:         uuid.New(),
		Code:       code,
		HostUserID: input.HostUserID,
		RomID:      input.RomID,
		Status:     domain.SessionStatusActive,
		ExpiresAt:  now.Add(ttl),
	}
	host := &domain.Participant{
		ID:       uuid.New(),
		UserID:   input.HostUserID,
		Role:     domain.RoleHost,
		JoinedAt: now,
	}

	if err := s.sessionRepo.CreateWithHost(ctx, session, host); err != nil {
		return nil, err
	}

	created, err := s.sessionRepo.GetByID(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	if s.signaling == nil {
		return created, nil
	}

	res, err := s.signaling.CreateSession(ctx, signaling.CreateSessionRequest{
		SessionID:    created.ID.String(),
		Code:         created.Code,
		TTLMs:        ttl.Milliseconds(),
		ExpiresAt:    created.ExpiresAt,
		Participants: signalingParticipants(created.Participants),
	})
	if err != nil {
		s.log.Error().Err(err).
			Str("session_id", created.ID.String()).
			Str("code", created.Code).
			Msg("signaling create failed, rolling back session")
		if delErr := s.sessionRepo.Delete(ctx, created.ID); delErr != nil {
			s.log.Error().Err(delErr).
				Str("session_id", created.ID.String()).
				Msg("failed to roll back session after signaling error")
		}
		return nil, err
	}

	if res.ExternalSessionID == "" {
		s.log.Warn().
			Str("session_id", created.ID.String()).
			Msg("signaling create response carried no session id")
		return created, nil
	}

	created.ExternalSessionID = &res.ExternalSessionID
	created.SignalingPayload = datatypes.JSON(res.Raw)
	if err := s.sessionRepo.Update(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *SessionService) JoinSession(ctx context.Context, code, userID string) (*domain.Session, error) {
	session, err := s.sessionRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if err := s.ensureUsable(ctx, session); err != nil {
		return nil, err
	}

	// Re-joins are idempotent: no new row, no external call.
	if session.HasParticipant(userID) {
		return session, nil
	}

	guest := &domain.Participant{
		ID:        uuid.New(),
		SessionID: session.ID,
		UserID:    userID,
		Role:      domain.RoleGuest,
		JoinedAt:  s.now(),
	}
	if err := s.participantRepo.Create(ctx, guest); err != nil {
		// A concurrent join beat us to the insert; treat as already joined.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.sessionRepo.GetByID(ctx, session.ID)
		}
		return nil, err
	}

	if session.ExternalSessionID != nil && s.signaling != nil {
		added, err := s.signaling.AddParticipant(ctx, *session.ExternalSessionID, signaling.Participant{
			UserID: userID,
			Role:   string(domain.RoleGuest),
		})
		if err != nil {
			s.log.Error().Err(err).
				Str("session_id", session.ID.String()).
				Str("user_id", userID).
				Msg("signaling join failed, rolling back participant")
			if delErr := s.participantRepo.Delete(ctx, guest.ID); delErr != nil {
				s.log.Error().Err(delErr).
					Str("participant_id", guest.ID.String()).
					Msg("failed to roll back participant after signaling error")
			}
			return nil, err
		}
		if added != nil && added.ExternalParticipantID != "" {
			guest.ExternalParticipantID = &added.ExternalParticipantID
			if err := s.participantRepo.Update(ctx, guest); err != nil {
				return nil, err
			}
		}
	}

	return s.sessionRepo.GetByID(ctx, session.ID)
}

// ensureUsable rejects terminal sessions and eagerly expires a timed-out
// ACTIVE one so no caller can join a technically-expired row.
func (s *SessionService) ensureUsable(ctx context.Context, session *domain.Session) error {
	switch session.Status {
	case domain.SessionStatusExpired:
		return ErrSessionExpired
	case domain.SessionStatusEnded:
		return ErrSessionClosed
	}

	now := s.now()
	if session.ExpiresAt.After(now) {
		return nil
	}

	session.Status = domain.SessionStatusExpired
	session.EndedAt = &now
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return err
	}
	return ErrSessionExpired
}

func (s *SessionService) EndSession(ctx context.Context, sessionID uuid.UUID, endedByID *string) (*domain.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	// Terminal states never revert.
	if session.Status.Terminal() {
		return session, nil
	}

	now := s.now()
	session.Status = domain.SessionStatusEnded
	session.EndedAt = &now
	session.EndedByID = endedByID
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, err
	}

	// Local close is authoritative; the remote close is best effort.
	s.notifyClose(ctx, session)

	return session, nil
}

// ExpireStaleSessions transitions every timed-out ACTIVE session to EXPIRED
// and best-effort notifies the signaling API for each, in parallel. Safe to
// call repeatedly; already-terminal sessions are excluded by the query.
func (s *SessionService) ExpireStaleSessions(ctx context.Context, ref time.Time) (int, error) {
	if ref.IsZero() {
		ref = s.now()
	}

	stale, err := s.sessionRepo.FindStale(ctx, ref)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, len(stale))
	for i, sess := range stale {
		ids[i] = sess.ID
	}
	n, err := s.sessionRepo.ExpireMany(ctx, ids, ref)
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	for _, sess := range stale {
		if sess.ExternalSessionID == nil || s.signaling == nil {
			continue
		}
		wg.Add(1)
		go func(sess *domain.Session) {
			defer wg.Done()
			s.notifyClose(ctx, sess)
		}(sess)
	}
	wg.Wait()

	s.log.Info().Int64("expired", n).Time("reference", ref).Msg("expired stale sessions")
	return int(n), nil
}

func (s *SessionService) ListSessionsForUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	return s.sessionRepo.ListByUserID(ctx, userID)
}

func (s *SessionService) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *SessionService) GetSessionByCode(ctx context.Context, code string) (*domain.Session, error) {
	session, err := s.sessionRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// notifyClose tells the signaling API a session is gone. Failures are
// logged, never raised: by the time a session is closing, a remote error is
// not something this call can repair.
func (s *SessionService) notifyClose(ctx context.Context, session *domain.Session) {
	if session.ExternalSessionID == nil || s.signaling == nil {
		return
	}
	if err := s.signaling.DeleteSession(ctx, *session.ExternalSessionID); err != nil {
		s.log.Warn().Err(err).
			Str("session_id", session.ID.String()).
			Str("external_session_id", *session.ExternalSessionID).
			Msg("failed to close remote signaling session")
	}
}

func (s *SessionService) resolveTTL(requested time.Duration) time.Duration {
	if requested <= 0 {
		return s.cfg.DefaultSessionTTL
	}
	if requested < s.cfg.MinSessionTTL {
		return s.cfg.MinSessionTTL
	}
	if requested > s.cfg.MaxSessionTTL {
		return s.cfg.MaxSessionTTL
	}
	return requested
}

func signalingParticipants(participants []domain.Participant) []signaling.Participant {
	out := make([]signaling.Participant, len(participants))
	for i, p := range participants {
		out[i] = signaling.Participant{UserID: p.UserID, Role: string(p.Role)}
	}
	return out
}
