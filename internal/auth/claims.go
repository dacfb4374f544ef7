package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the only supported JWT claims shape for this service.
// Multi-tenant invariant: AccountCode must be present for every caller; it is
// the tenant boundary for everything the dashboard shows or controls.
// Agents additionally carry the Extension they are signed in at, which scopes
// their live-call view down to their own legs.
type Claims struct {
	jwt.RegisteredClaims

	UserID      string `json:"user_id"`
	AccountCode string `json:"account_code"`
	Role        string `json:"role"`
	Extension   string `json:"extension,omitempty"`
}
