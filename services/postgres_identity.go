package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/LovationAdmin/horizon-api/apperr"
	"github.com/LovationAdmin/horizon-api/models"
	"github.com/LovationAdmin/horizon-api/utils"

	"github.com/lib/pq"
)

// PostgresGateway implements IdentityGateway on a local Postgres database,
// for deployments without a hosted identity backend.
type PostgresGateway struct {
	db            *sql.DB
	databaseID    string
	sessionMaxAge time.Duration
}

var _ IdentityGateway = (*PostgresGateway)(nil)

func NewPostgresGateway(db *sql.DB, databaseID string, sessionMaxAge time.Duration) *PostgresGateway {
	return &PostgresGateway{db: db, databaseID: databaseID, sessionMaxAge: sessionMaxAge}
}

func pgError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Wrap(apperr.NotFound, op, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "23505" { // unique_violation
			return apperr.WithStatus(apperr.UpstreamRejected, op, http.StatusConflict, err)
		}
		if pqErr.Code.Class() == "23" { // integrity constraint
			return apperr.WithStatus(apperr.UpstreamRejected, op, http.StatusBadRequest, err)
		}
	}
	return apperr.Wrap(apperr.UpstreamUnavailable, op, err)
}

func (g *PostgresGateway) CreateAccount(ctx context.Context, email, password, name string) (*models.Identity, error) {
	const op = "postgres.createAccount"

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%s: hash password: %w", op, err)
	}

	identity := &models.Identity{ID: uniqueID(), Email: email, Name: name}
	_, err = g.db.ExecContext(ctx, `
		INSERT INTO identities (id, email, password_hash, name)
		VALUES ($1, $2, $3, $4)
	`, identity.ID, identity.Email, hash, identity.Name)
	if err != nil {
		return nil, pgError(op, err)
	}
	return identity, nil
}

func (g *PostgresGateway) CreateSession(ctx context.Context, email, password string) (*models.Session, error) {
	const op = "postgres.createSession"

	var identityID, hash string
	err := g.db.QueryRowContext(ctx,
		"SELECT id, password_hash FROM identities WHERE email = $1", email,
	).Scan(&identityID, &hash)
	if err == sql.ErrNoRows || (err == nil && !utils.CheckPassword(password, hash)) {
		return nil, apperr.WithStatus(apperr.UpstreamRejected, op, http.StatusUnauthorized,
			errors.New("invalid credentials"))
	}
	if err != nil {
		return nil, pgError(op, err)
	}

	secret, secretHash, err := utils.GenerateSessionSecret()
	if err != nil {
		return nil, fmt.Errorf("%s: generate secret: %w", op, err)
	}
	expiresAt := time.Now().Add(g.sessionMaxAge)

	var sessionID string
	err = g.db.QueryRowContext(ctx, `
		INSERT INTO sessions (identity_id, secret_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, identityID, secretHash, expiresAt).Scan(&sessionID)
	if err != nil {
		return nil, pgError(op, err)
	}

	return &models.Session{
		ID:         sessionID,
		IdentityID: identityID,
		Secret:     secret,
		Expire:     expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (g *PostgresGateway) GetAccount(ctx context.Context, sessionSecret string) (*models.Identity, error) {
	const op = "postgres.getAccount"
	if sessionSecret == "" {
		return nil, apperr.New(apperr.NotFound, op, "no session")
	}

	var identity models.Identity
	err := g.db.QueryRowContext(ctx, `
		SELECT i.id, i.email, i.name
		FROM sessions s
		JOIN identities i ON i.id = s.identity_id
		WHERE s.secret_hash = $1 AND s.expires_at > NOW()
	`, utils.HashToken(sessionSecret)).Scan(&identity.ID, &identity.Email, &identity.Name)
	if err != nil {
		return nil, pgError(op, err)
	}
	return &identity, nil
}

func (g *PostgresGateway) DeleteSession(ctx context.Context, sessionSecret string) error {
	const op = "postgres.deleteSession"
	if sessionSecret == "" {
		return apperr.New(apperr.NotFound, op, "no session")
	}

	result, err := g.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE secret_hash = $1", utils.HashToken(sessionSecret))
	if err != nil {
		return pgError(op, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperr.New(apperr.NotFound, op, "session not found")
	}
	return nil
}

func (g *PostgresGateway) CreateDocument(ctx context.Context, collectionID string, data any) (string, error) {
	const op = "postgres.createDocument"

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("%s: encode document: %w", op, err)
	}

	id := uniqueID()
	_, err = g.db.ExecContext(ctx, `
		INSERT INTO documents (id, database_id, collection_id, data)
		VALUES ($1, $2, $3, $4)
	`, id, g.databaseID, collectionID, string(payload))
	if err != nil {
		return "", pgError(op, err)
	}
	return id, nil
}

func (g *PostgresGateway) ListDocuments(ctx context.Context, collectionID, attribute, value string, out any) error {
	const op = "postgres.listDocuments"

	rows, err := g.db.QueryContext(ctx, `
		SELECT id, data
		FROM documents
		WHERE database_id = $1 AND collection_id = $2 AND data->>$3 = $4
		ORDER BY created_at
	`, g.databaseID, collectionID, attribute, value)
	if err != nil {
		return pgError(op, err)
	}
	defer rows.Close()

	docs := []map[string]any{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return pgError(op, err)
		}
		doc := map[string]any{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("%s: decode document %s: %w", op, id, err)
		}
		doc["$id"] = id
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return pgError(op, err)
	}

	// Round-trip through JSON so callers decode into their own types exactly
	// as they do for the hosted backend.
	encoded, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, out)
}

// PurgeExpiredSessions deletes sessions past their expiry and returns how
// many were removed.
func (g *PostgresGateway) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	result, err := g.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < NOW()")
	if err != nil {
		return 0, pgError("postgres.purgeExpiredSessions", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
