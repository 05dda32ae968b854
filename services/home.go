package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LovationAdmin/horizon-api/apperr"
	"github.com/LovationAdmin/horizon-api/models"
	"github.com/LovationAdmin/horizon-api/utils"

	"github.com/shopspring/decimal"
)

type homeEntry struct {
	summary   *models.HomeSummary
	expiresAt time.Time
}

// HomeService builds the dashboard summary. Summaries are cached per user
// until the TTL passes or Invalidate is called.
type HomeService struct {
	accounts   *BankAccountStore
	aggregator Aggregator
	cipher     *utils.Cipher
	ttl        time.Duration
	now        func() time.Time

	mu    sync.RWMutex
	cache map[string]homeEntry
	// gens counts invalidations per user. A summary built across an
	// invalidation is returned but not cached.
	gens  map[string]uint64
}

var _ ViewInvalidator = (*HomeService)(nil)

func NewHomeService(accounts *BankAccountStore, aggregator Aggregator, cipher *utils.Cipher, ttl time.Duration) *HomeService {
	return &HomeService{
		accounts:   accounts,
		aggregator: aggregator,
		cipher:     cipher,
		ttl:        ttl,
		now:        time.Now,
		cache:      make(map[string]homeEntry),
		gens:       make(map[string]uint64),
	}
}

func (s *HomeService) GetHome(ctx context.Context, user *models.User) (*models.HomeSummary, error) {
	if user == nil {
		return nil, apperr.New(apperr.NotFound, "home.get", "no user")
	}

	summary, gen, ok := s.cached(user.ID)
	if ok {
		utils.SafeDebug("🏠 Home summary for user %s served from cache", utils.MaskID(user.ID))
		return summary, nil
	}

	bankAccounts, err := s.accounts.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	summary = &models.HomeSummary{
		User:                user,
		Accounts:            make([]models.AccountSummary, 0, len(bankAccounts)),
		TotalBanks:          len(bankAccounts),
		TotalCurrentBalance: decimal.Zero,
	}
	for _, b := range bankAccounts {
		account, err := s.liveAccount(ctx, b)
		if err != nil {
			return nil, err
		}
		summary.Accounts = append(summary.Accounts, account)
		summary.TotalCurrentBalance = summary.TotalCurrentBalance.Add(account.CurrentBalance)
	}

	if s.ttl > 0 {
		s.mu.Lock()
		if s.gens[user.ID] == gen {
			s.cache[user.ID] = homeEntry{summary: summary, expiresAt: s.now().Add(s.ttl)}
		}
		s.mu.Unlock()
	}
	return summary, nil
}

// GetAccount resolves a shareable id to one of the user's accounts with its
// live balance. Accounts of other users are reported as not found.
func (s *HomeService) GetAccount(ctx context.Context, user *models.User, shareableID string) (*models.AccountSummary, error) {
	const op = "home.getAccount"
	if user == nil {
		return nil, apperr.New(apperr.NotFound, op, "no user")
	}

	accountID, err := s.cipher.DecryptID(shareableID)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, op, err)
	}

	candidates, err := s.accounts.ListByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for _, b := range candidates {
		if b.UserID != user.ID {
			continue
		}
		account, err := s.liveAccount(ctx, b)
		if err != nil {
			return nil, err
		}
		return &account, nil
	}
	return nil, apperr.New(apperr.NotFound, op, "account not found")
}

func (s *HomeService) Invalidate(userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.gens[userID]++
	s.mu.Unlock()
}

// cached returns a live cache entry, or the user's current generation for a
// miss.
func (s *HomeService) cached(userID string) (*models.HomeSummary, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cache[userID]
	if !ok || !s.now().Before(entry.expiresAt) {
		return nil, s.gens[userID], false
	}
	return entry.summary, 0, true
}

func (s *HomeService) liveAccount(ctx context.Context, b models.BankAccount) (models.AccountSummary, error) {
	linked, err := s.aggregator.GetAccounts(ctx, b.AccessToken)
	if err != nil {
		return models.AccountSummary{}, fmt.Errorf("balances for bank %s: %w", b.ID, err)
	}
	for _, a := range linked {
		if a.AccountID == b.AccountID {
			return models.AccountSummary{
				LinkedAccount: a,
				ID:            b.ID,
				BankID:        b.BankID,
				ShareableID:   b.ShareableID,
			}, nil
		}
	}
	return models.AccountSummary{}, apperr.New(apperr.NotFound, "home.liveAccount",
		fmt.Sprintf("account %s no longer present at aggregator", utils.MaskID(b.AccountID)))
}
