package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const balanceCacheTTL = 5 * time.Minute

// Balance is the read-only view of a wallet's funds.
type Balance struct {
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
	Total     decimal.Decimal `json:"total"`
}

type Service struct {
	repo  *Repository
	cache *redis.Client
}

func NewService(repo *Repository, cache *redis.Client) *Service {
	return &Service{repo: repo, cache: cache}
}

func balanceCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("wallet:balance:%s", userID)
}

// GetBalance returns the user's balance, read through the Redis cache.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, balanceCacheKey(userID)).Result()
		if err == nil {
			var b Balance
			if json.Unmarshal([]byte(raw), &b) == nil {
				return &b, nil
			}
		}
	}

	w, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	b := &Balance{Available: w.Available, Locked: w.Locked, Total: w.Total()}

	if s.cache != nil {
		if raw, err := json.Marshal(b); err == nil {
			if err := s.cache.Set(ctx, balanceCacheKey(userID), raw, balanceCacheTTL).Err(); err != nil {
				log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to cache wallet balance")
			}
		}
	}

	return b, nil
}

// InvalidateBalance drops cached balances after a ledger mutation commits.
func (s *Service) InvalidateBalance(ctx context.Context, userIDs ...uuid.UUID) {
	if s.cache == nil {
		return
	}
	for _, id := range userIDs {
		if id == uuid.Nil {
			continue
		}
		if err := s.cache.Del(ctx, balanceCacheKey(id)).Err(); err != nil {
			log.Warn().Err(err).Str("user_id", id.String()).Msg("failed to invalidate balance cache")
		}
	}
}

// Repo exposes the ledger primitives to the settlement flows that compose
// them inside their own units of work.
func (s *Service) Repo() *Repository {
	return s.repo
}
