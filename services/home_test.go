package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/LovationAdmin/horizon-api/apperr"
	"github.com/LovationAdmin/horizon-api/models"
)

type homeFixture struct {
	*linkFixture
	home *HomeService
}

func newHomeFixture(t *testing.T, ttl time.Duration) *homeFixture {
	t.Helper()
	f := newLinkFixture(t, defaultPolicy())
	return &homeFixture{
		linkFixture: f,
		home:        NewHomeService(f.store, f.aggregator, f.cipher, ttl),
	}
}

func (f *homeFixture) link(t *testing.T, user *models.User) *models.BankAccount {
	t.Helper()
	result, err := f.service.ExchangePublicToken(context.Background(), ExchangeInput{PublicToken: "public", User: user})
	if err != nil {
		t.Fatalf("ExchangePublicToken() failed: %v", err)
	}
	return result.BankAccount
}

func TestGetHome_SumsBalances(t *testing.T) {
	f := newHomeFixture(t, time.Minute)
	user := testUser()
	f.link(t, user)
	f.link(t, user)

	summary, err := f.home.GetHome(context.Background(), user)
	if err != nil {
		t.Fatalf("GetHome() failed: %v", err)
	}
	if summary.TotalBanks != 2 || len(summary.Accounts) != 2 {
		t.Errorf("TotalBanks = %d, accounts = %d, want 2 and 2", summary.TotalBanks, len(summary.Accounts))
	}
	if got := summary.TotalCurrentBalance.StringFixed(2); got != "220.00" {
		t.Errorf("TotalCurrentBalance = %s, want 220.00", got)
	}
	if summary.Accounts[0].ShareableID == "" {
		t.Error("account summary has no shareable id")
	}
}

func TestGetHome_NoAccounts(t *testing.T) {
	f := newHomeFixture(t, time.Minute)

	summary, err := f.home.GetHome(context.Background(), testUser())
	if err != nil {
		t.Fatalf("GetHome() failed: %v", err)
	}
	if summary.TotalBanks != 0 || !summary.TotalCurrentBalance.IsZero() || summary.Accounts == nil {
		t.Errorf("unexpected empty summary: %+v", summary)
	}
}

func TestGetHome_CacheAndInvalidate(t *testing.T) {
	f := newHomeFixture(t, time.Minute)
	user := testUser()
	f.link(t, user)
	base := f.aggregator.getAccountsCalls()

	for i := 0; i < 3; i++ {
		if _, err := f.home.GetHome(context.Background(), user); err != nil {
			t.Fatal(err)
		}
	}
	if got := f.aggregator.getAccountsCalls() - base; got != 1 {
		t.Errorf("aggregator called %d times, want 1 (cached)", got)
	}

	f.home.Invalidate(user.ID)
	if _, err := f.home.GetHome(context.Background(), user); err != nil {
		t.Fatal(err)
	}
	if got := f.aggregator.getAccountsCalls() - base; got != 2 {
		t.Errorf("aggregator called %d times after Invalidate, want 2", got)
	}
}

func TestGetHome_CacheExpires(t *testing.T) {
	f := newHomeFixture(t, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	f.home.now = func() time.Time { return now }
	user := testUser()
	f.link(t, user)
	base := f.aggregator.getAccountsCalls()

	f.home.GetHome(context.Background(), user)
	now = now.Add(2 * time.Minute)
	f.home.GetHome(context.Background(), user)

	if got := f.aggregator.getAccountsCalls() - base; got != 2 {
		t.Errorf("aggregator called %d times, want 2 after expiry", got)
	}
}

func TestExchangeInvalidatesHome(t *testing.T) {
	f := newLinkFixture(t, defaultPolicy())
	home := NewHomeService(f.store, f.aggregator, f.cipher, time.Hour)
	f.service = NewBankLinkService(f.aggregator, f.processor, f.store, f.cipher, defaultPolicy(), home)
	user := testUser()

	summary, _ := home.GetHome(context.Background(), user)
	if summary.TotalBanks != 0 {
		t.Fatalf("TotalBanks = %d, want 0", summary.TotalBanks)
	}

	if _, err := f.service.ExchangePublicToken(context.Background(), ExchangeInput{PublicToken: "public", User: user}); err != nil {
		t.Fatal(err)
	}

	summary, _ = home.GetHome(context.Background(), user)
	if summary.TotalBanks != 1 {
		t.Errorf("TotalBanks = %d after link, want 1", summary.TotalBanks)
	}
}

// pausingGateway holds the first ListDocuments call after it has read the
// store, so a write can land before the caller finishes.
type pausingGateway struct {
	*fakeGateway
	once    sync.Once
	listed  chan struct{}
	release chan struct{}
}

func (g *pausingGateway) ListDocuments(ctx context.Context, collectionID, attribute, value string, out any) error {
	err := g.fakeGateway.ListDocuments(ctx, collectionID, attribute, value, out)
	g.once.Do(func() {
		close(g.listed)
		<-g.release
	})
	return err
}

func TestGetHome_InvalidateDuringBuildIsNotLost(t *testing.T) {
	f := newLinkFixture(t, defaultPolicy())
	paused := &pausingGateway{
		fakeGateway: f.gateway,
		listed:      make(chan struct{}),
		release:     make(chan struct{}),
	}
	home := NewHomeService(NewBankAccountStore(paused, bankCollection, f.cipher), f.aggregator, f.cipher, time.Hour)
	f.service = NewBankLinkService(f.aggregator, f.processor, f.store, f.cipher, defaultPolicy(), home)
	user := testUser()

	stale := make(chan *models.HomeSummary, 1)
	go func() {
		summary, err := home.GetHome(context.Background(), user)
		if err != nil {
			t.Errorf("GetHome() failed: %v", err)
		}
		stale <- summary
	}()

	<-paused.listed
	if _, err := f.service.ExchangePublicToken(context.Background(), ExchangeInput{PublicToken: "public", User: user}); err != nil {
		t.Fatal(err)
	}
	close(paused.release)

	if summary := <-stale; summary != nil && summary.TotalBanks != 0 {
		t.Fatalf("in-flight TotalBanks = %d, want 0", summary.TotalBanks)
	}

	summary, err := home.GetHome(context.Background(), user)
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalBanks != 1 {
		t.Errorf("TotalBanks = %d after link, want 1", summary.TotalBanks)
	}
}

func TestHomeGetAccount(t *testing.T) {
	f := newHomeFixture(t, time.Minute)
	user := testUser()
	bank := f.link(t, user)

	account, err := f.home.GetAccount(context.Background(), user, bank.ShareableID)
	if err != nil {
		t.Fatalf("GetAccount() failed: %v", err)
	}
	if account.AccountID != "acc-1" || account.ID != bank.ID {
		t.Errorf("unexpected account: %+v", account)
	}

	other := &models.User{ID: "someone-else"}
	if _, err := f.home.GetAccount(context.Background(), other, bank.ShareableID); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("other user: expected NotFound, got %v", err)
	}
	if _, err := f.home.GetAccount(context.Background(), user, "not-a-real-id"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("malformed id: expected NotFound, got %v", err)
	}
}
