package app

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"bus-tracker/internal/notify/domain"
	"bus-tracker/internal/shared/util"
)

// memDirectory is both the Directory and the TokenStore, like the users table.
type memDirectory struct {
	mu        sync.Mutex
	users     map[string]*domain.Recipient
	failFind  error
	failPrune error
	removals  map[string]int
}

func newMemDirectory(users ...domain.Recipient) *memDirectory {
	d := &memDirectory{users: make(map[string]*domain.Recipient), removals: make(map[string]int)}
	for i := range users {
		u := users[i]
		u.Tokens = append([]string(nil), u.Tokens...)
		d.users[u.UID] = &u
	}
	return d
}

func (d *memDirectory) sorted() []*domain.Recipient {
	out := make([]*domain.Recipient, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

func (d *memDirectory) FindByVehicle(_ context.Context, vehicleID string, roles []string) ([]domain.Recipient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFind != nil {
		return nil, d.failFind
	}
	var out []domain.Recipient
	for _, u := range d.sorted() {
		if util.NormalizeVehicleID(u.VehicleID) != vehicleID {
			continue
		}
		for _, r := range roles {
			if u.Role == r {
				c := *u
				c.Tokens = append([]string(nil), u.Tokens...)
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (d *memDirectory) FindByRole(_ context.Context, role string) ([]domain.Recipient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFind != nil {
		return nil, d.failFind
	}
	var out []domain.Recipient
	for _, u := range d.sorted() {
		if u.Role == role {
			c := *u
			c.Tokens = append([]string(nil), u.Tokens...)
			out = append(out, c)
		}
	}
	return out, nil
}

func (d *memDirectory) FindByUID(_ context.Context, uid string) (*domain.Recipient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFind != nil {
		return nil, d.failFind
	}
	u, ok := d.users[uid]
	if !ok {
		return nil, nil
	}
	c := *u
	c.Tokens = append([]string(nil), u.Tokens...)
	return &c, nil
}

func (d *memDirectory) RemoveTokens(_ context.Context, uid string, tokens []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failPrune != nil {
		return d.failPrune
	}
	d.removals[uid]++
	u, ok := d.users[uid]
	if !ok {
		return nil
	}
	drop := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		drop[t] = true
	}
	kept := u.Tokens[:0]
	for _, t := range u.Tokens {
		if !drop[t] {
			kept = append(kept, t)
		}
	}
	u.Tokens = kept
	return nil
}

func (d *memDirectory) tokens(uid string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.users[uid].Tokens...)
}

type fakeGateway struct {
	mu        sync.Mutex
	invalid   map[string]bool
	transient map[string]bool
	fail      error
	calls     [][]string
	messages  []domain.Message
}

func (g *fakeGateway) Multicast(_ context.Context, tokens []string, msg domain.Message) ([]domain.DeliveryResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, append([]string(nil), tokens...))
	g.messages = append(g.messages, msg)
	if g.fail != nil {
		return nil, g.fail
	}
	out := make([]domain.DeliveryResult, len(tokens))
	for i, t := range tokens {
		switch {
		case g.invalid[t]:
			out[i] = domain.DeliveryResult{Token: t, Status: domain.StatusInvalid, Err: errors.New("registration-token-not-registered")}
		case g.transient[t]:
			out[i] = domain.DeliveryResult{Token: t, Status: domain.StatusTransient, Err: errors.New("unavailable")}
		default:
			out[i] = domain.DeliveryResult{Token: t, Status: domain.StatusDelivered}
		}
	}
	return out, nil
}

func testLogger() *util.Logger {
	return util.NewWithWriter(io.Discard)
}

func newTestRelay(dir *memDirectory, gw *fakeGateway) *Relay {
	logger := testLogger()
	return NewRelay(NewResolver(dir), gw, NewPruner(dir, logger), "tracking-alerts", logger)
}
