package postgres

import (
	"context"
	"time"

	"github.com/arcadenet/netplay/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) CreateWithHost(ctx context.Context, session *domain.Session, host *domain.Participant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		host.SessionID = session.ID
		return tx.Create(host).Error
	})
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	var session domain.Session
	err := r.db.WithContext(ctx).
		Preload("Participants").
		First(&session, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) GetByCode(ctx context.Context, code string) (*domain.Session, error) {
	var session domain.Session
	err := r.db.WithContext(ctx).
		Preload("Participants").
		First(&session, "code = ?", code).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("code = ?", code).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *sessionRepository) Update(ctx context.Context, session *domain.Session) error {
	return r.db.WithContext(ctx).Omit("Participants").Save(session).Error
}

func (r *sessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Select("Participants").Delete(&domain.Session{ID: id}).Error
}

func (r *sessionRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.Session, error) {
	var sessions []*domain.Session
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Joins("JOIN participants ON participants.session_id = sessions.id").
		Where("participants.user_id = ?", userID).
		Order("sessions.created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepository) FindStale(ctx context.Context, ref time.Time) ([]*domain.Session, error) {
	var sessions []*domain.Session
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", domain.SessionStatusActive, ref).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepository) ExpireMany(ctx context.Context, ids []uuid.UUID, ref time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id IN ? AND status = ?", ids, domain.SessionStatusActive).
		Updates(map[string]interface{}{
			"status":   domain.SessionStatusExpired,
			"ended_at": ref,
		})
	return res.RowsAffected, res.Error
}
