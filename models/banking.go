package models

import (
	"github.com/shopspring/decimal"
)

// BankAccount is the local record written once per successful link.
type BankAccount struct {
	ID               string `json:"$id,omitempty"`
	UserID           string `json:"userId"`
	BankID           string `json:"bankId"` // aggregator item id
	AccountID        string `json:"accountId"`
	AccessToken      string `json:"-"` // server-side only, see BankAccountDocument
	FundingSourceURL string `json:"fundingSourceUrl"`
	ShareableID      string `json:"shareableId"`
}

// BankAccountDocument is the stored form of a BankAccount. It is the only
// type that serializes the access token and must never reach a response.
type BankAccountDocument struct {
	ID               string `json:"$id,omitempty"`
	UserID           string `json:"userId"`
	BankID           string `json:"bankId"`
	AccountID        string `json:"accountId"`
	AccessToken      string `json:"accessToken"`
	FundingSourceURL string `json:"fundingSourceUrl"`
	ShareableID      string `json:"shareableId"`
}

func (d BankAccountDocument) BankAccount() BankAccount {
	return BankAccount{
		ID:               d.ID,
		UserID:           d.UserID,
		BankID:           d.BankID,
		AccountID:        d.AccountID,
		AccessToken:      d.AccessToken,
		FundingSourceURL: d.FundingSourceURL,
		ShareableID:      d.ShareableID,
	}
}

func NewBankAccountDocument(b BankAccount) BankAccountDocument {
	return BankAccountDocument{
		UserID:           b.UserID,
		BankID:           b.BankID,
		AccountID:        b.AccountID,
		AccessToken:      b.AccessToken,
		FundingSourceURL: b.FundingSourceURL,
		ShareableID:      b.ShareableID,
	}
}

// LinkedAccount is the aggregator's view of one account.
type LinkedAccount struct {
	AccountID        string          `json:"accountId"`
	Name             string          `json:"name"`
	OfficialName     string          `json:"officialName,omitempty"`
	Mask             string          `json:"mask,omitempty"`
	Type             string          `json:"type"`
	Subtype          string          `json:"subtype,omitempty"`
	CurrentBalance   decimal.Decimal `json:"currentBalance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	Currency         string          `json:"currency,omitempty"`
}

// ============================================================================
// LINK FLOW
// ============================================================================

type ExchangeRequest struct {
	PublicToken string `json:"public_token" binding:"required"`
	AccountID   string `json:"account_id"`
}

type LinkTokenResponse struct {
	LinkToken string `json:"linkToken"`
}

// ============================================================================
// HOME VIEW
// ============================================================================

type AccountSummary struct {
	LinkedAccount
	ID          string `json:"id"`
	BankID      string `json:"bankId"`
	ShareableID string `json:"shareableId"`
}

type HomeSummary struct {
	User                *User            `json:"user"`
	Accounts            []AccountSummary `json:"accounts"`
	TotalBanks          int              `json:"totalBanks"`
	TotalCurrentBalance decimal.Decimal  `json:"totalCurrentBalance"`
}

// ============================================================================
// PAYMENT PROCESSOR
// ============================================================================

type CustomerParams struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Type        string `json:"type"`
	Address1    string `json:"address1"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode"`
	DateOfBirth string `json:"dateOfBirth"`
	SSN         string `json:"ssn"`
}
