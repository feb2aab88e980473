package app

import (
	"context"
	"fmt"
	"sync"

	"bus-tracker/internal/notify/domain"
	"bus-tracker/internal/shared/util"
)

// Pruner drops tokens the gateway reported as permanently invalid. Failures
// are logged and not retried; the next delivery reports the token again.
type Pruner struct {
	store  domain.TokenStore
	logger *util.Logger
}

func NewPruner(store domain.TokenStore, logger *util.Logger) *Pruner {
	return &Pruner{store: store, logger: logger}
}

// RemoveTokens is idempotent: tokens already gone are ignored by the store.
func (p *Pruner) RemoveTokens(ctx context.Context, uid string, tokens []string) error {
	tokens = cleanTokens(tokens)
	if uid == "" || len(tokens) == 0 {
		return nil
	}

	if err := p.store.RemoveTokens(ctx, uid, tokens); err != nil {
		p.logger.Error("TokenPruner.RemoveTokens", fmt.Sprintf("failed to prune %d token(s) for %s", len(tokens), uid), err)
		return err
	}

	p.logger.Info("TokenPruner.RemoveTokens", fmt.Sprintf("pruned %d token(s) for %s", len(tokens), uid))
	return nil
}

// PruneAll issues one RemoveTokens call per uid, in parallel across uids, and
// returns how many distinct tokens were removed from at least one owner.
func (p *Pruner) PruneAll(ctx context.Context, byUID map[string][]string) int {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		pruned = make(map[string]struct{})
	)

	for uid, tokens := range byUID {
		tokens = cleanTokens(tokens)
		if len(tokens) == 0 {
			continue
		}

		wg.Add(1)
		go func(uid string, tokens []string) {
			defer wg.Done()
			if err := p.RemoveTokens(ctx, uid, tokens); err != nil {
				return
			}
			mu.Lock()
			for _, t := range tokens {
				pruned[t] = struct{}{}
			}
			mu.Unlock()
		}(uid, tokens)
	}

	wg.Wait()
	return len(pruned)
}
