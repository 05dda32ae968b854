package services

import (
	"context"
	"fmt"

	"github.com/LovationAdmin/horizon-api/apperr"
	"github.com/LovationAdmin/horizon-api/models"
	"github.com/LovationAdmin/horizon-api/utils"
)

// UserStore reads and writes profile documents in the user collection.
type UserStore struct {
	gateway      IdentityGateway
	collectionID string
}

func NewUserStore(gateway IdentityGateway, collectionID string) *UserStore {
	return &UserStore{gateway: gateway, collectionID: collectionID}
}

func (s *UserStore) Create(ctx context.Context, user models.User) (*models.User, error) {
	user.ID = ""
	id, err := s.gateway.CreateDocument(ctx, s.collectionID, user)
	if err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}
	user.ID = id
	return &user, nil
}

// GetByIdentity returns the profile for an identity id.
func (s *UserStore) GetByIdentity(ctx context.Context, identityID string) (*models.User, error) {
	var users []models.User
	if err := s.gateway.ListDocuments(ctx, s.collectionID, "userId", identityID, &users); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(users) == 0 {
		return nil, apperr.New(apperr.NotFound, "users.getByIdentity", "no user document for identity")
	}
	return &users[0], nil
}

// BankAccountStore persists BankAccounts. Access tokens are encrypted before
// they reach the document backend.
type BankAccountStore struct {
	gateway      IdentityGateway
	collectionID string
	cipher       *utils.Cipher
}

func NewBankAccountStore(gateway IdentityGateway, collectionID string, cipher *utils.Cipher) *BankAccountStore {
	return &BankAccountStore{gateway: gateway, collectionID: collectionID, cipher: cipher}
}

func (s *BankAccountStore) Create(ctx context.Context, account models.BankAccount) (*models.BankAccount, error) {
	doc := models.NewBankAccountDocument(account)

	sealed, err := s.cipher.Encrypt([]byte(account.AccessToken))
	if err != nil {
		return nil, fmt.Errorf("seal access token: %w", err)
	}
	doc.AccessToken = sealed

	id, err := s.gateway.CreateDocument(ctx, s.collectionID, doc)
	if err != nil {
		return nil, fmt.Errorf("store bank account: %w", err)
	}
	account.ID = id
	return &account, nil
}

func (s *BankAccountStore) ListByUser(ctx context.Context, userID string) ([]models.BankAccount, error) {
	return s.list(ctx, "userId", userID)
}

func (s *BankAccountStore) ListByAccountID(ctx context.Context, accountID string) ([]models.BankAccount, error) {
	return s.list(ctx, "accountId", accountID)
}

func (s *BankAccountStore) list(ctx context.Context, attribute, value string) ([]models.BankAccount, error) {
	var docs []models.BankAccountDocument
	if err := s.gateway.ListDocuments(ctx, s.collectionID, attribute, value, &docs); err != nil {
		return nil, fmt.Errorf("list bank accounts: %w", err)
	}

	accounts := make([]models.BankAccount, 0, len(docs))
	for _, doc := range docs {
		token, err := s.cipher.Decrypt(doc.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("open access token for %s: %w", doc.ID, err)
		}
		doc.AccessToken = string(token)
		accounts = append(accounts, doc.BankAccount())
	}
	return accounts, nil
}
