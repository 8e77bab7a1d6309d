package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/arcadenet/netplay/internal/domain"
	"github.com/arcadenet/netplay/internal/repository/postgres"
	"github.com/arcadenet/netplay/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSessionRepository_CreateWithHost(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewSessionRepository(testDB.DB)
	ctx := context.Background()

	session := &domain.Session{
		ID:         uuid.New(),
		Code:       "ABC123",
		HostUserID: "host-1",
		Status:     domain.SessionStatusActive,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	host := &domain.Participant{
		ID:       uuid.New(),
		UserID:   "host-1",
		Role:     domain.RoleHost,
		JoinedAt: time.Now(),
	}

	require.NoError(t, repo.CreateWithHost(ctx, session, host))

	got, err := repo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", got.Code)
	require.Len(t, got.Participants, 1)
	assert.Equal(t, domain.RoleHost, got.Participants[0].Role)
	assert.Equal(t, session.ID, got.Participants[0].SessionID)
}

func TestSessionRepository_CodeUniqueness(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewSessionRepository(testDB.DB)
	ctx := context.Background()

	testutil.NewSessionBuilder().WithCode("DUP111").Build(t, testDB.DB)

	exists, err := repo.CodeExists(ctx, "DUP111")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.CodeExists(ctx, "FREE22")
	require.NoError(t, err)
	assert.False(t, exists)

	// A second session with the same code must be rejected by the store.
	err = repo.CreateWithHost(ctx, &domain.Session{
		ID:         uuid.New(),
		Code:       "DUP111",
		HostUserID: "host-2",
		Status:     domain.SessionStatusActive,
		ExpiresAt:  time.Now().Add(time.Hour),
	}, &domain.Participant{
		ID:       uuid.New(),
		UserID:   "host-2",
		Role:     domain.RoleHost,
		JoinedAt: time.Now(),
	})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestSessionRepository_DeleteCascades(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewSessionRepository(testDB.DB)
	ctx := context.Background()

	session := testutil.NewSessionBuilder().WithCode("GONE11").Build(t, testDB.DB)

	require.NoError(t, repo.Delete(ctx, session.ID))

	_, err := repo.GetByID(ctx, session.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var count int64
	require.NoError(t, testDB.DB.Model(&domain.Participant{}).Where("session_id = ?", session.ID).Count(&count).Error)
	assert.Zero(t, count, "participants must be removed with the session")
}

func TestSessionRepository_GetByCode(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewSessionRepository(testDB.DB)
	ctx := context.Background()

	session := testutil.NewSessionBuilder().WithCode("FIND01").Build(t, testDB.DB)

	got, err := repo.GetByCode(ctx, "FIND01")
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.NotEmpty(t, got.Participants)

	_, err = repo.GetByCode(ctx, "NOPE00")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSessionRepository_ExpireMany(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewSessionRepository(testDB.DB)
	ctx := context.Background()

	ref := time.Now()
	stale := testutil.NewSessionBuilder().WithCode("OLD001").WithExpiresAt(ref.Add(-time.Minute)).Build(t, testDB.DB)
	ended := testutil.NewSessionBuilder().WithCode("OLD002").WithExpiresAt(ref.Add(-time.Minute)).WithStatus(domain.SessionStatusEnded).Build(t, testDB.DB)
	fresh := testutil.NewSessionBuilder().WithCode("NEW001").WithExpiresAt(ref.Add(time.Hour)).Build(t, testDB.DB)

	found, err := repo.FindStale(ctx, ref)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stale.ID, found[0].ID)

	// The ended session is excluded by the ACTIVE guard.
	n, err := repo.ExpireMany(ctx, []uuid.UUID{stale.ID, ended.ID}, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, ended.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusEnded, got.Status)

	got, err = repo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusActive, got.Status)
}

func TestSessionRepository_ListByUserID(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewSessionRepository(testDB.DB)
	ctx := context.Background()

	mine := testutil.NewSessionBuilder().WithCode("MINE01").WithHost("user-1").Build(t, testDB.DB)
	other := testutil.NewSessionBuilder().WithCode("THEIR1").WithHost("user-2").Build(t, testDB.DB)

	// user-1 is also a guest in the other session.
	require.NoError(t, testDB.DB.Create(&domain.Participant{
		ID:        uuid.New(),
		SessionID: other.ID,
		UserID:    "user-1",
		Role:      domain.RoleGuest,
		JoinedAt:  time.Now(),
	}).Error)

	sessions, err := repo.ListByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	ids := []uuid.UUID{sessions[0].ID, sessions[1].ID}
	assert.Contains(t, ids, mine.ID)
	assert.Contains(t, ids, other.ID)
}

func TestParticipantRepository_DuplicateMembership(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewParticipantRepository(testDB.DB)
	ctx := context.Background()

	session := testutil.NewSessionBuilder().WithCode("UNIQ01").Build(t, testDB.DB)

	guest := &domain.Participant{
		ID:        uuid.New(),
		SessionID: session.ID,
		UserID:    "guest-1",
		Role:      domain.RoleGuest,
		JoinedAt:  time.Now(),
	}
	require.NoError(t, repo.Create(ctx, guest))

	// The composite unique index turns a duplicate insert into
	// ErrDuplicatedKey for the service's idempotent-join handling.
	err := repo.Create(ctx, &domain.Participant{
		ID:        uuid.New(),
		SessionID: session.ID,
		UserID:    "guest-1",
		Role:      domain.RoleGuest,
		JoinedAt:  time.Now(),
	})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}
