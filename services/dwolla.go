package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LovationAdmin/horizon-api/apperr"
	"github.com/LovationAdmin/horizon-api/config"
	"github.com/LovationAdmin/horizon-api/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const dwollaMediaType = "application/vnd.dwolla.v1.hal+json"

var dwollaBaseURLs = map[string]string{
	"sandbox":    "https://api-sandbox.dwolla.com",
	"production": "https://api.dwolla.com",
}

// DwollaService is the payment processor. The OAuth2 transport fetches and
// refreshes the application token on its own.
type DwollaService struct {
	BaseURL string
	Client  *http.Client
}

var _ PaymentProcessor = (*DwollaService)(nil)

func NewDwollaService(cfg config.DwollaConfig) *DwollaService {
	base, ok := dwollaBaseURLs[cfg.Env]
	if !ok {
		base = dwollaBaseURLs["sandbox"]
	}
	return newDwollaService(cfg, base)
}

func newDwollaService(cfg config.DwollaConfig, baseURL string) *DwollaService {
	credentials := clientcredentials.Config{
		ClientID:     cfg.Key,
		ClientSecret: cfg.Secret,
		TokenURL:     baseURL + "/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	// Token requests use their own bounded client.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{
		Timeout: 30 * time.Second,
	})
	client := credentials.Client(tokenCtx)
	client.Timeout = 30 * time.Second

	return &DwollaService{
		BaseURL: baseURL,
		Client:  client,
	}
}

type dwollaErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do sends one HAL request and returns the Location header, which is how
// Dwolla reports the URL of a created resource.
func (s *DwollaService) do(ctx context.Context, op, method, target string, body, out any) (string, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return "", fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", dwollaMediaType)
	req.Header.Set("Accept", dwollaMediaType)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.UpstreamUnavailable, op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Wrap(apperr.UpstreamUnavailable, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr dwollaErrorBody
		msg := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Code + ": " + apiErr.Message
		}
		return "", apperr.WithStatus(apperr.FromHTTPStatus(resp.StatusCode), op, resp.StatusCode,
			fmt.Errorf("dwolla responded %d: %s", resp.StatusCode, msg))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return "", apperr.Wrap(apperr.UpstreamUnavailable, op, fmt.Errorf("decode response: %w", err))
		}
	}
	return resp.Header.Get("Location"), nil
}

// 1. Create a verified personal customer, returns its URL
func (s *DwollaService) CreateCustomer(ctx context.Context, params models.CustomerParams) (string, error) {
	const op = "dwolla.createCustomer"
	if params.Type == "" {
		params.Type = "personal"
	}

	location, err := s.do(ctx, op, http.MethodPost, s.BaseURL+"/customers", params, nil)
	if err != nil {
		return "", err
	}
	if location == "" {
		return "", apperr.New(apperr.UpstreamRejected, op, "no customer location returned")
	}
	return location, nil
}

// 2. On-demand authorization, required before attaching a bank for debits
func (s *DwollaService) CreateOnDemandAuthorization(ctx context.Context) (string, error) {
	const op = "dwolla.createOnDemandAuthorization"

	var result struct {
		Links map[string]struct {
			Href string `json:"href"`
		} `json:"_links"`
	}
	if _, err := s.do(ctx, op, http.MethodPost, s.BaseURL+"/on-demand-authorizations", nil, &result); err != nil {
		return "", err
	}

	href := result.Links["self"].Href
	if href == "" {
		return "", apperr.New(apperr.UpstreamRejected, op, "authorization carried no self link")
	}
	return href, nil
}

// 3. Attach the bank behind a Plaid processor token to the customer
func (s *DwollaService) AddFundingSource(ctx context.Context, customerID, processorToken, bankName string) (string, error) {
	const op = "dwolla.addFundingSource"

	authURL, err := s.CreateOnDemandAuthorization(ctx)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"plaidToken": processorToken,
		"name":       bankName,
		"_links": map[string]any{
			"on-demand-authorization": map[string]string{"href": authURL},
		},
	}

	target := fmt.Sprintf("%s/customers/%s/funding-sources", s.BaseURL, customerID)
	return s.do(ctx, op, http.MethodPost, target, payload, nil)
}

// 4. Soft-remove a funding source by URL
func (s *DwollaService) RemoveFundingSource(ctx context.Context, fundingSourceURL string) error {
	const op = "dwolla.removeFundingSource"
	if fundingSourceURL == "" {
		return apperr.New(apperr.NotFound, op, "no funding source")
	}
	_, err := s.do(ctx, op, http.MethodPost, fundingSourceURL, map[string]bool{"removed": true}, nil)
	return err
}

// ExtractCustomerID returns the last path segment of a customer URL.
func ExtractCustomerID(customerURL string) string {
	trimmed := strings.TrimRight(customerURL, "/")
	return trimmed[strings.LastIndex(trimmed, "/")+1:]
}
