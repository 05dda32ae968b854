package services

import (
	"context"
	"strings"

	"github.com/LovationAdmin/horizon-api/models"

	"github.com/google/uuid"
)

// IdentityGateway is the single contract over the identity and document
// backend. Every error it returns carries an apperr.Kind.
type IdentityGateway interface {
	CreateAccount(ctx context.Context, email, password, name string) (*models.Identity, error)
	CreateSession(ctx context.Context, email, password string) (*models.Session, error)
	GetAccount(ctx context.Context, sessionSecret string) (*models.Identity, error)
	DeleteSession(ctx context.Context, sessionSecret string) error

	// CreateDocument stores data in the collection and returns the new id.
	CreateDocument(ctx context.Context, collectionID string, data any) (string, error)
	// ListDocuments decodes every document whose attribute equals value into
	// out, which must be a pointer to a slice.
	ListDocuments(ctx context.Context, collectionID, attribute, value string, out any) error
}

// uniqueID mirrors the hosted backend's ID.unique(): at most 36 chars from
// [a-zA-Z0-9], not starting with a special character.
func uniqueID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
