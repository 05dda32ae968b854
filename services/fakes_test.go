package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/LovationAdmin/horizon-api/apperr"
	"github.com/LovationAdmin/horizon-api/config"
	"github.com/LovationAdmin/horizon-api/models"
	"github.com/LovationAdmin/horizon-api/utils"

	"github.com/shopspring/decimal"
)

const (
	testEncryptionKey = "01234567890123456789012345678901"
	userCollection    = "users"
	bankCollection    = "banks"
)

// callLog records calls across fakes so tests can assert ordering.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.list() {
		if c == call {
			n++
		}
	}
	return n
}

// ========== IDENTITY GATEWAY ==========

type fakeIdentity struct {
	identity models.Identity
	password string
}

type fakeGateway struct {
	mu         sync.Mutex
	nextID     int
	identities map[string]fakeIdentity // by email
	sessions   map[string]string       // secret -> identity id
	documents  map[string][]map[string]any

	createDocErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		identities: map[string]fakeIdentity{},
		sessions:   map[string]string{},
		documents:  map[string][]map[string]any{},
	}
}

func (g *fakeGateway) id(prefix string) string {
	g.nextID++
	return fmt.Sprintf("%s%d", prefix, g.nextID)
}

func (g *fakeGateway) CreateAccount(_ context.Context, email, password, name string) (*models.Identity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.identities[email]; exists {
		return nil, apperr.WithStatus(apperr.UpstreamRejected, "fake.createAccount", 409, fmt.Errorf("user already exists"))
	}
	identity := models.Identity{ID: g.id("identity-"), Email: email, Name: name}
	g.identities[email] = fakeIdentity{identity: identity, password: password}
	return &identity, nil
}

func (g *fakeGateway) CreateSession(_ context.Context, email, password string) (*models.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.identities[email]
	if !ok || rec.password != password {
		return nil, apperr.WithStatus(apperr.UpstreamRejected, "fake.createSession", 401, fmt.Errorf("invalid credentials"))
	}
	secret := g.id("secret-")
	g.sessions[secret] = rec.identity.ID
	return &models.Session{ID: g.id("session-"), IdentityID: rec.identity.ID, Secret: secret}, nil
}

func (g *fakeGateway) GetAccount(_ context.Context, secret string) (*models.Identity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	identityID, ok := g.sessions[secret]
	if secret == "" || !ok {
		return nil, apperr.New(apperr.NotFound, "fake.getAccount", "no session")
	}
	for _, rec := range g.identities {
		if rec.identity.ID == identityID {
			identity := rec.identity
			return &identity, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "fake.getAccount", "no identity")
}

func (g *fakeGateway) DeleteSession(_ context.Context, secret string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.sessions[secret]; !ok {
		return apperr.New(apperr.NotFound, "fake.deleteSession", "no session")
	}
	delete(g.sessions, secret)
	return nil
}

func (g *fakeGateway) CreateDocument(_ context.Context, collectionID string, data any) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createDocErr != nil {
		return "", g.createDocErr
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", err
	}
	id := g.id("doc-")
	doc["$id"] = id
	g.documents[collectionID] = append(g.documents[collectionID], doc)
	return id, nil
}

func (g *fakeGateway) ListDocuments(_ context.Context, collectionID, attribute, value string, out any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	matches := []map[string]any{}
	for _, doc := range g.documents[collectionID] {
		if v, ok := doc[attribute].(string); ok && v == value {
			matches = append(matches, doc)
		}
	}
	raw, err := json.Marshal(matches)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (g *fakeGateway) docs(collectionID string) []map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]map[string]any(nil), g.documents[collectionID]...)
}

// ========== AGGREGATOR ==========

type fakeAggregator struct {
	log *callLog

	accounts     []models.LinkedAccount
	linkToken    string
	exchangeErr  error
	accountsErr  error
	processorErr error
	removeErr    error

	mu           sync.Mutex
	nextItem     int
	accountCalls int
}

func (a *fakeAggregator) CreateLinkToken(_ context.Context, userID, clientName string) (string, error) {
	a.log.add("createLinkToken %s %s", userID, clientName)
	return a.linkToken, nil
}

func (a *fakeAggregator) ExchangePublicToken(_ context.Context, publicToken string) (string, string, error) {
	a.log.add("exchange %s", publicToken)
	if a.exchangeErr != nil {
		return "", "", a.exchangeErr
	}
	a.mu.Lock()
	a.nextItem++
	n := a.nextItem
	a.mu.Unlock()
	return fmt.Sprintf("access-sandbox-%d", n), fmt.Sprintf("item-%d", n), nil
}

func (a *fakeAggregator) GetAccounts(_ context.Context, accessToken string) ([]models.LinkedAccount, error) {
	a.mu.Lock()
	a.accountCalls++
	a.mu.Unlock()
	a.log.add("getAccounts %s", accessToken)
	if a.accountsErr != nil {
		return nil, a.accountsErr
	}
	return a.accounts, nil
}

func (a *fakeAggregator) CreateProcessorToken(_ context.Context, accessToken, accountID string) (string, error) {
	a.log.add("processorToken %s", accountID)
	if a.processorErr != nil {
		return "", a.processorErr
	}
	return "processor-sandbox-" + accountID, nil
}

func (a *fakeAggregator) RemoveItem(_ context.Context, accessToken string) error {
	a.log.add("removeItem %s", accessToken)
	return a.removeErr
}

func (a *fakeAggregator) getAccountsCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accountCalls
}

// ========== PAYMENT PROCESSOR ==========

type fakeProcessor struct {
	log *callLog

	customerURL string
	customerErr error
	fundingURL  string
	fundingErr  error
	removeErr   error
}

func (p *fakeProcessor) CreateCustomer(_ context.Context, params models.CustomerParams) (string, error) {
	p.log.add("createCustomer %s", params.Email)
	if p.customerErr != nil {
		return "", p.customerErr
	}
	return p.customerURL, nil
}

func (p *fakeProcessor) AddFundingSource(_ context.Context, customerID, processorToken, bankName string) (string, error) {
	p.log.add("addFundingSource %s %s %s", customerID, processorToken, bankName)
	if p.fundingErr != nil {
		return "", p.fundingErr
	}
	return p.fundingURL, nil
}

func (p *fakeProcessor) RemoveFundingSource(_ context.Context, url string) error {
	p.log.add("removeFundingSource %s", url)
	return p.removeErr
}

// ========== INVALIDATOR ==========

type recordingInvalidator struct {
	mu    sync.Mutex
	users []string
}

func (r *recordingInvalidator) Invalidate(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

// ========== FIXTURES ==========

func testCipher(t *testing.T) *utils.Cipher {
	t.Helper()
	c, err := utils.NewCipher(testEncryptionKey)
	if err != nil {
		t.Fatalf("NewCipher() failed: %v", err)
	}
	return c
}

func checking(id, name, current string) models.LinkedAccount {
	return models.LinkedAccount{
		AccountID:        id,
		Name:             name,
		Type:             "depository",
		Subtype:          "checking",
		CurrentBalance:   decimal.RequireFromString(current),
		AvailableBalance: decimal.RequireFromString(current),
		Currency:         "USD",
	}
}

func testUser() *models.User {
	return &models.User{
		ID:               "user-doc-1",
		UserID:           "identity-1",
		Email:            "jane@example.com",
		FirstName:        "Jane",
		LastName:         "Doe",
		DwollaCustomerID: "cust-1",
	}
}

type linkFixture struct {
	log         *callLog
	gateway     *fakeGateway
	aggregator  *fakeAggregator
	processor   *fakeProcessor
	invalidator *recordingInvalidator
	cipher      *utils.Cipher
	store       *BankAccountStore
	service     *BankLinkService
}

func newLinkFixture(t *testing.T, policy config.LinkConfig) *linkFixture {
	t.Helper()
	log := &callLog{}
	f := &linkFixture{
		log:     log,
		gateway: newFakeGateway(),
		aggregator: &fakeAggregator{
			log:       log,
			linkToken: "link-sandbox-123",
			accounts: []models.LinkedAccount{
				checking("acc-1", "Plaid Checking", "110.00"),
				checking("acc-2", "Plaid Saving", "210.50"),
			},
		},
		processor: &fakeProcessor{
			log:        log,
			fundingURL: "https://api-sandbox.dwolla.com/funding-sources/fs-1",
		},
		invalidator: &recordingInvalidator{},
		cipher:      testCipher(t),
	}
	f.store = NewBankAccountStore(f.gateway, bankCollection, f.cipher)
	f.service = NewBankLinkService(f.aggregator, f.processor, f.store, f.cipher, policy, f.invalidator)
	return f
}

func defaultPolicy() config.LinkConfig {
	return config.LinkConfig{AccountSelection: config.SelectFirst, Compensate: true}
}
