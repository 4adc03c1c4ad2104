package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/allopieces/push-dispatch/internal/logger"
	"github.com/lib/pq"
)

// TokenStore reads OneSignal player IDs for application identifiers.
// Absence of rows is not an error condition; the store is read-only here.
type TokenStore interface {
	// TokensForUsers returns the player IDs registered for any of the users.
	TokensForUsers(ctx context.Context, userIDs []string) ([]string, error)
	// TokensForDevices returns the player IDs registered for any of the devices.
	TokensForDevices(ctx context.Context, deviceIDs []string) ([]string, error)
	// TokenForRecipient returns the single player ID for one user profile.
	// found is false when the user has no registered token.
	TokenForRecipient(ctx context.Context, recipientID string) (token string, found bool, err error)
}

// PGTokenStore reads push tokens from PostgreSQL.
type PGTokenStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewPGTokenStore creates a token store backed by the given database.
func NewPGTokenStore(db *sql.DB, logger *logger.Logger) *PGTokenStore {
	logger.WithComponent("token-store").Info("postgres token store initialized")

	return &PGTokenStore{
		db:     db,
		logger: logger,
	}
}

// TokensForUsers returns all player IDs registered in push_tokens for the
// given user IDs. A user may have zero, one or multiple rows.
func (s *PGTokenStore) TokensForUsers(ctx context.Context, userIDs []string) ([]string, error) {
	query := `
		SELECT onesignal_player_id
		FROM push_tokens
		WHERE user_id = ANY($1)
	`
	return s.queryTokens(ctx, query, pq.Array(userIDs))
}

// TokensForDevices returns all player IDs registered in push_tokens for the
// given device IDs, independent of user resolution.
func (s *PGTokenStore) TokensForDevices(ctx context.Context, deviceIDs []string) ([]string, error) {
	query := `
		SELECT onesignal_player_id
		FROM push_tokens
		WHERE device_id = ANY($1)
	`
	return s.queryTokens(ctx, query, pq.Array(deviceIDs))
}

func (s *PGTokenStore) queryTokens(ctx context.Context, query string, ids interface{}) ([]string, error) {
	log := s.logger.WithContext(ctx).WithComponent("token-store")

	rows, err := s.db.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query push tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan push token: %w", err)
		}
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate push tokens: %w", err)
	}

	log.Debug("push token lookup completed", slog.Int("token_count", len(tokens)))

	return tokens, nil
}

// TokenForRecipient returns the player ID stored on the recipient's profile.
// A missing profile or a profile without a token is a not-found, not an error.
func (s *PGTokenStore) TokenForRecipient(ctx context.Context, recipientID string) (string, bool, error) {
	query := `
		SELECT onesignal_player_id
		FROM profiles
		WHERE id = $1
	`

	var token sql.NullString
	err := s.db.QueryRowContext(ctx, query, recipientID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query recipient token: %w", err)
	}

	if !token.Valid || token.String == "" {
		return "", false, nil
	}

	return token.String, true, nil
}
