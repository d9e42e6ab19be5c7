// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitedesk/sitedesk/internal/auth"
)

func testSession(t *testing.T) *auth.Session {
	t.Helper()
	_, hash, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	session, err := auth.NewSession(
		ulid.Make(), hash, "Mozilla/5.0", "203.0.113.7",
		time.Now().Add(auth.SessionTokenTTL),
	)
	require.NoError(t, err)
	return session
}

func sessionColumns() []string {
	return []string{
		"id", "principal_id", "token_hash", "user_agent", "ip_address",
		"expires_at", "created_at", "last_seen_at",
	}
}

func sessionRow(s *auth.Session) *pgxmock.Rows {
	return pgxmock.NewRows(sessionColumns()).
		AddRow(
			s.ID.String(), s.PrincipalID.String(), s.TokenHash, s.UserAgent,
			s.IPAddress, s.ExpiresAt, s.CreatedAt, s.LastSeenAt,
		)
}

func TestSessionRepository_Create(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface, s *auth.Session)
		wantErr   bool
		errMsg    string
	}{
		{
			name: "successful insert",
			setupMock: func(mock pgxmock.PgxPoolIface, s *auth.Session) {
				mock.ExpectExec(`INSERT INTO sessions`).
					WithArgs(
						s.ID.String(), s.PrincipalID.String(), s.TokenHash,
						s.UserAgent, s.IPAddress, s.ExpiresAt, s.CreatedAt, s.LastSeenAt,
					).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface, s *auth.Session) {
				mock.ExpectExec(`INSERT INTO sessions`).
					WithArgs(
						s.ID.String(), s.PrincipalID.String(), s.TokenHash,
						s.UserAgent, s.IPAddress, s.ExpiresAt, s.CreatedAt, s.LastSeenAt,
					).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
			errMsg:  "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			session := testSession(t)
			tt.setupMock(mock, session)

			repo := NewSessionRepository(mock)
			err = repo.Create(context.Background(), session)

			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestSessionRepository_GetByTokenHash(t *testing.T) {
	session := testSession(t)

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, principal_id, token_hash`).
			WithArgs(session.TokenHash).
			WillReturnRows(sessionRow(session))

		repo := NewSessionRepository(mock)
		got, err := repo.GetByTokenHash(context.Background(), session.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)
		assert.Equal(t, session.PrincipalID, got.PrincipalID)
		assert.Equal(t, session.TokenHash, got.TokenHash)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, principal_id, token_hash`).
			WithArgs("missing-hash").
			WillReturnRows(pgxmock.NewRows(sessionColumns()))

		repo := NewSessionRepository(mock)
		_, err = repo.GetByTokenHash(context.Background(), "missing-hash")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, principal_id, token_hash`).
			WithArgs(session.TokenHash).
			WillReturnError(errors.New("timeout"))

		repo := NewSessionRepository(mock)
		_, err = repo.GetByTokenHash(context.Background(), session.TokenHash)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout")
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestSessionRepository_GetByPrincipal(t *testing.T) {
	session := testSession(t)

	t.Run("multiple sessions newest first", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		other := testSession(t)
		other.PrincipalID = session.PrincipalID

		rows := pgxmock.NewRows(sessionColumns()).
			AddRow(
				other.ID.String(), other.PrincipalID.String(), other.TokenHash,
				other.UserAgent, other.IPAddress, other.ExpiresAt, other.CreatedAt, other.LastSeenAt,
			).
			AddRow(
				session.ID.String(), session.PrincipalID.String(), session.TokenHash,
				session.UserAgent, session.IPAddress, session.ExpiresAt, session.CreatedAt, session.LastSeenAt,
			)
		mock.ExpectQuery(`FROM sessions`).
			WithArgs(session.PrincipalID.String()).
			WillReturnRows(rows)

		repo := NewSessionRepository(mock)
		got, err := repo.GetByPrincipal(context.Background(), session.PrincipalID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, other.ID, got[0].ID)
		assert.Equal(t, session.ID, got[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("no sessions", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectQuery(`FROM sessions`).
			WithArgs(session.PrincipalID.String()).
			WillReturnRows(pgxmock.NewRows(sessionColumns()))

		repo := NewSessionRepository(mock)
		got, err := repo.GetByPrincipal(context.Background(), session.PrincipalID)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("row iteration error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		rows := sessionRow(session).RowError(0, errors.New("row iteration error"))
		mock.ExpectQuery(`FROM sessions`).
			WithArgs(session.PrincipalID.String()).
			WillReturnRows(rows)

		repo := NewSessionRepository(mock)
		_, err = repo.GetByPrincipal(context.Background(), session.PrincipalID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row iteration error")
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestSessionRepository_UpdateLastSeen(t *testing.T) {
	id := ulid.Make()
	now := time.Now()

	t.Run("successful update", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE sessions SET last_seen_at = \$2`).
			WithArgs(id.String(), now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewSessionRepository(mock)
		require.NoError(t, repo.UpdateLastSeen(context.Background(), id, now))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE sessions SET last_seen_at = \$2`).
			WithArgs(id.String(), now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := NewSessionRepository(mock)
		err = repo.UpdateLastSeen(context.Background(), id, now)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestSessionRepository_Delete(t *testing.T) {
	id := ulid.Make()

	t.Run("successful delete", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		repo := NewSessionRepository(mock)
		require.NoError(t, repo.Delete(context.Background(), id))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := NewSessionRepository(mock)
		err = repo.Delete(context.Background(), id)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestSessionRepository_DeleteByTokenHash(t *testing.T) {
	t.Run("successful delete", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE token_hash = \$1`).
			WithArgs("hash-value").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		repo := NewSessionRepository(mock)
		require.NoError(t, repo.DeleteByTokenHash(context.Background(), "hash-value"))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE token_hash = \$1`).
			WithArgs("missing").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := NewSessionRepository(mock)
		err = repo.DeleteByTokenHash(context.Background(), "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestSessionRepository_DeleteByPrincipal(t *testing.T) {
	principalID := ulid.Make()

	t.Run("deletes all sessions", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE principal_id = \$1`).
			WithArgs(principalID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 3))

		repo := NewSessionRepository(mock)
		require.NoError(t, repo.DeleteByPrincipal(context.Background(), principalID))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("no sessions is not an error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE principal_id = \$1`).
			WithArgs(principalID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := NewSessionRepository(mock)
		require.NoError(t, repo.DeleteByPrincipal(context.Background(), principalID))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	t.Run("returns count", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE expires_at < \$1`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 5))

		repo := NewSessionRepository(mock)
		count, err := repo.DeleteExpired(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(5), count)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE expires_at < \$1`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnError(errors.New("disk full"))

		repo := NewSessionRepository(mock)
		_, err = repo.DeleteExpired(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}
