package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/LovationAdmin/horizon-api/apperr"
	"github.com/LovationAdmin/horizon-api/config"
	"github.com/LovationAdmin/horizon-api/models"

	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/shopspring/decimal"
)

const dwollaProcessor = "dwolla"

type PlaidService struct {
	Client       *plaid.APIClient
	Products     []plaid.Products
	CountryCodes []plaid.CountryCode
	Language     string
}

var _ Aggregator = (*PlaidService)(nil)

func NewPlaidService(cfg config.PlaidConfig) *PlaidService {
	env := plaid.Sandbox
	if cfg.Env == "production" {
		env = plaid.Production
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	configuration.UseEnvironment(env)

	products := make([]plaid.Products, 0, len(cfg.Products))
	for _, p := range cfg.Products {
		products = append(products, plaid.Products(p))
	}
	countries := make([]plaid.CountryCode, 0, len(cfg.CountryCodes))
	for _, c := range cfg.CountryCodes {
		countries = append(countries, plaid.CountryCode(c))
	}

	return &PlaidService{
		Client:       plaid.NewAPIClient(configuration),
		Products:     products,
		CountryCodes: countries,
		Language:     cfg.Language,
	}
}

// 1. Create Link Token (the client opens Plaid Link with it)
func (s *PlaidService) CreateLinkToken(ctx context.Context, userID, clientName string) (string, error) {
	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: userID,
	}

	request := plaid.NewLinkTokenCreateRequest(clientName, s.Language, s.CountryCodes, user)
	request.SetProducts(s.Products)

	resp, httpResp, err := s.Client.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", plaidError("plaid.linkTokenCreate", httpResp, err)
	}

	return resp.GetLinkToken(), nil
}

// 2. Exchange Public Token (from Link) for a durable Access Token
func (s *PlaidService) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	request := plaid.NewItemPublicTokenExchangeRequest(publicToken)

	resp, httpResp, err := s.Client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return "", "", plaidError("plaid.itemPublicTokenExchange", httpResp, err)
	}

	return resp.GetAccessToken(), resp.GetItemId(), nil
}

// 3. List the item's accounts with their cached balances
func (s *PlaidService) GetAccounts(ctx context.Context, accessToken string) ([]models.LinkedAccount, error) {
	request := plaid.NewAccountsGetRequest(accessToken)

	resp, httpResp, err := s.Client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
	if err != nil {
		return nil, plaidError("plaid.accountsGet", httpResp, err)
	}

	accounts := make([]models.LinkedAccount, 0, len(resp.GetAccounts()))
	for _, a := range resp.GetAccounts() {
		accounts = append(accounts, toLinkedAccount(a))
	}
	return accounts, nil
}

// 4. Processor token scoped to one account, handed to Dwolla
func (s *PlaidService) CreateProcessorToken(ctx context.Context, accessToken, accountID string) (string, error) {
	request := plaid.NewProcessorTokenCreateRequest(accessToken, accountID, dwollaProcessor)

	resp, httpResp, err := s.Client.PlaidApi.ProcessorTokenCreate(ctx).ProcessorTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", plaidError("plaid.processorTokenCreate", httpResp, err)
	}

	return resp.GetProcessorToken(), nil
}

// 5. Remove the item, revoking its access token and processor tokens
func (s *PlaidService) RemoveItem(ctx context.Context, accessToken string) error {
	request := plaid.NewItemRemoveRequest(accessToken)

	_, httpResp, err := s.Client.PlaidApi.ItemRemove(ctx).ItemRemoveRequest(*request).Execute()
	if err != nil {
		return plaidError("plaid.itemRemove", httpResp, err)
	}
	return nil
}

func toLinkedAccount(a plaid.AccountBase) models.LinkedAccount {
	balances := a.GetBalances()
	return models.LinkedAccount{
		AccountID:        a.GetAccountId(),
		Name:             a.GetName(),
		OfficialName:     a.GetOfficialName(),
		Mask:             a.GetMask(),
		Type:             string(a.GetType()),
		Subtype:          string(a.GetSubtype()),
		CurrentBalance:   decimal.NewFromFloat(balances.GetCurrent()),
		AvailableBalance: decimal.NewFromFloat(balances.GetAvailable()),
		Currency:         balances.GetIsoCurrencyCode(),
	}
}

type plaidErrorBody struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// plaidError classifies a failed call. Bad API keys are a configuration
// problem, other 4xx mean Plaid rejected the request, and anything else
// (including no response at all) means it was unavailable.
func plaidError(op string, httpResp *http.Response, err error) error {
	status := 0
	if httpResp != nil {
		status = httpResp.StatusCode
	}

	detail := err
	var apiErr plaid.GenericOpenAPIError
	if errors.As(err, &apiErr) && len(apiErr.Body()) > 0 {
		var body plaidErrorBody
		if json.Unmarshal(apiErr.Body(), &body) == nil && body.ErrorCode != "" {
			detail = fmt.Errorf("plaid error %s/%s: %s", body.ErrorType, body.ErrorCode, body.ErrorMessage)
			if body.ErrorCode == "INVALID_API_KEYS" {
				return apperr.WithStatus(apperr.Configuration, op, status, detail)
			}
		} else {
			detail = fmt.Errorf("plaid error: %s", string(apiErr.Body()))
		}
	}

	if status >= 400 && status < 500 {
		return apperr.WithStatus(apperr.UpstreamRejected, op, status, detail)
	}
	return apperr.WithStatus(apperr.UpstreamUnavailable, op, status, detail)
}
