package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/LovationAdmin/horizon-api/apperr"
	"github.com/LovationAdmin/horizon-api/config"
	"github.com/LovationAdmin/horizon-api/models"
	"github.com/LovationAdmin/horizon-api/utils"
)

// Aggregator is the bank-data provider behind Link.
type Aggregator interface {
	CreateLinkToken(ctx context.Context, userID, clientName string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (accessToken, itemID string, err error)
	GetAccounts(ctx context.Context, accessToken string) ([]models.LinkedAccount, error)
	CreateProcessorToken(ctx context.Context, accessToken, accountID string) (string, error)
	RemoveItem(ctx context.Context, accessToken string) error
}

// PaymentProcessor holds customers and their funding sources.
type PaymentProcessor interface {
	CreateCustomer(ctx context.Context, params models.CustomerParams) (string, error)
	AddFundingSource(ctx context.Context, customerID, processorToken, bankName string) (string, error)
	RemoveFundingSource(ctx context.Context, fundingSourceURL string) error
}

// ViewInvalidator is told when a user's linked accounts change.
type ViewInvalidator interface {
	Invalidate(userID string)
}

type ExchangeInput struct {
	PublicToken string
	User        *models.User
	// AccountID is only honored with the "requested" selection policy.
	AccountID string
}

type ExchangeResult struct {
	BankAccount *models.BankAccount
	Account     models.LinkedAccount
}

type BankLinkService struct {
	aggregator   Aggregator
	processor    PaymentProcessor
	accounts     *BankAccountStore
	cipher       *utils.Cipher
	policy       config.LinkConfig
	invalidators []ViewInvalidator
}

func NewBankLinkService(
	aggregator Aggregator,
	processor PaymentProcessor,
	accounts *BankAccountStore,
	cipher *utils.Cipher,
	policy config.LinkConfig,
	invalidators ...ViewInvalidator,
) *BankLinkService {
	return &BankLinkService{
		aggregator:   aggregator,
		processor:    processor,
		accounts:     accounts,
		cipher:       cipher,
		policy:       policy,
		invalidators: invalidators,
	}
}

// CreateLinkToken asks the aggregator for a short-lived token the client uses
// to open Link. One attempt, no retry.
func (s *BankLinkService) CreateLinkToken(ctx context.Context, user *models.User) (string, error) {
	const op = "bankLink.createLinkToken"
	if user == nil {
		return "", apperr.New(apperr.NotFound, op, "no user")
	}

	token, err := s.aggregator.CreateLinkToken(ctx, user.ID, user.DisplayName())
	if err != nil {
		utils.SafeError("❌ Link token creation failed for user %s: %v", utils.MaskID(user.ID), err)
		return "", fmt.Errorf("create link token: %w", err)
	}
	if token == "" {
		return "", apperr.New(apperr.UpstreamRejected, op, "aggregator returned an empty link token")
	}

	utils.LogBankingAction("LINK_TOKEN_CREATED", "", user.ID)
	return token, nil
}

// ExchangePublicToken turns a Link public token into a persisted BankAccount
// backed by a processor funding source. Steps after the token exchange are
// undone in reverse order if a later step fails.
func (s *BankLinkService) ExchangePublicToken(ctx context.Context, in ExchangeInput) (*ExchangeResult, error) {
	const op = "bankLink.exchangePublicToken"
	if in.User == nil {
		return nil, apperr.New(apperr.NotFound, op, "no user")
	}
	if in.PublicToken == "" {
		return nil, apperr.WithStatus(apperr.UpstreamRejected, op, http.StatusBadRequest,
			fmt.Errorf("public token is required"))
	}
	user := in.User

	accessToken, itemID, err := s.aggregator.ExchangePublicToken(ctx, in.PublicToken)
	if err != nil {
		utils.SafeError("❌ Public token exchange failed for user %s: %v", utils.MaskID(user.ID), err)
		return nil, fmt.Errorf("exchange public token: %w", err)
	}
	utils.LogBankingAction("PUBLIC_TOKEN_EXCHANGED", itemID, user.ID)

	tx := newSaga(s.policy.Compensate)
	tx.onFailure("remove aggregator item", func(ctx context.Context) error {
		return s.aggregator.RemoveItem(ctx, accessToken)
	})

	result, err := s.link(ctx, tx, in, accessToken, itemID)
	if err != nil {
		utils.SafeError("❌ Bank link failed for user %s (item %s): %v", utils.MaskID(user.ID), utils.MaskID(itemID), err)
		tx.rollback(ctx, err)
		return nil, err
	}

	for _, inv := range s.invalidators {
		inv.Invalidate(user.ID)
	}
	utils.LogBankingAction("BANK_ACCOUNT_LINKED", itemID, user.ID)
	return result, nil
}

func (s *BankLinkService) link(ctx context.Context, tx *saga, in ExchangeInput, accessToken, itemID string) (*ExchangeResult, error) {
	const op = "bankLink.exchangePublicToken"
	user := in.User

	accounts, err := s.aggregator.GetAccounts(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	account, err := s.selectAccount(accounts, in.AccountID)
	if err != nil {
		return nil, err
	}

	if s.policy.RejectDuplicates {
		existing, err := s.accounts.ListByUser(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("check existing links: %w", err)
		}
		for _, b := range existing {
			if b.AccountID == account.AccountID {
				return nil, apperr.New(apperr.AlreadyLinked, op, "account is already linked")
			}
		}
	}

	processorToken, err := s.aggregator.CreateProcessorToken(ctx, accessToken, account.AccountID)
	if err != nil {
		return nil, fmt.Errorf("create processor token: %w", err)
	}

	fundingSourceURL, err := s.processor.AddFundingSource(ctx, user.DwollaCustomerID, processorToken, account.Name)
	if err != nil {
		return nil, fmt.Errorf("add funding source: %w", err)
	}
	if fundingSourceURL == "" {
		return nil, apperr.New(apperr.UpstreamRejected, op, "processor returned no funding source url")
	}
	tx.onFailure("remove funding source", func(ctx context.Context) error {
		return s.processor.RemoveFundingSource(ctx, fundingSourceURL)
	})

	bankAccount, err := s.accounts.Create(ctx, models.BankAccount{
		UserID:           user.ID,
		BankID:           itemID,
		AccountID:        account.AccountID,
		AccessToken:      accessToken,
		FundingSourceURL: fundingSourceURL,
		ShareableID:      s.cipher.EncryptID(account.AccountID),
	})
	if err != nil {
		return nil, fmt.Errorf("persist bank account: %w", err)
	}

	return &ExchangeResult{BankAccount: bankAccount, Account: account}, nil
}

func (s *BankLinkService) selectAccount(accounts []models.LinkedAccount, requested string) (models.LinkedAccount, error) {
	const op = "bankLink.selectAccount"
	if len(accounts) == 0 {
		return models.LinkedAccount{}, apperr.New(apperr.NotFound, op, "item has no accounts")
	}
	if s.policy.AccountSelection != config.SelectRequested || requested == "" {
		return accounts[0], nil
	}
	for _, a := range accounts {
		if a.AccountID == requested {
			return a, nil
		}
	}
	return models.LinkedAccount{}, apperr.New(apperr.NotFound, op, "requested account is not part of the item")
}
