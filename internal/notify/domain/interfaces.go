package domain

import "context"

// Directory reads user records. FindByUID returns nil, nil for an unknown uid.
type Directory interface {
	FindByVehicle(ctx context.Context, vehicleID string, roles []string) ([]Recipient, error)
	FindByRole(ctx context.Context, role string) ([]Recipient, error)
	FindByUID(ctx context.Context, uid string) (*Recipient, error)
}

// TokenStore removes tokens from a user's set. Removing an absent token is not an error.
type TokenStore interface {
	RemoveTokens(ctx context.Context, uid string, tokens []string) error
}

// Gateway sends one message to many tokens and reports per-token results in
// the order of tokens. An error means the call as a whole failed.
type Gateway interface {
	Multicast(ctx context.Context, tokens []string, msg Message) ([]DeliveryResult, error)
}
