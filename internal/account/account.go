package account

import "context"

// Profile is a kiosk user's account profile
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Points      int    `json:"points"`
}

// Service defines the interface for the external account backend. Lookups
// may return nothing and credits may fail; neither is fatal to the kiosk
// flow - the signed receipt remains the fallback proof of a session.
type Service interface {
	// GetProfile looks up a user profile. Returns (nil, nil) when the user
	// does not exist.
	GetProfile(ctx context.Context, id string) (*Profile, error)

	// AddPoints credits points to a user's account
	AddPoints(ctx context.Context, id string, points int) error
}
