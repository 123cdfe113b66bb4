package models

import "time"

// Identity represents the claims carried by an identity token issued by a
// third-party sign-in provider.
type Identity struct {
	Subject       string    `json:"sub"`
	Issuer        string    `json:"iss,omitempty"`
	Audience      []string  `json:"aud,omitempty"`
	Email         string    `json:"email,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	Name          string    `json:"name,omitempty"`
	ExpiresAt     time.Time `json:"exp"`
}

// Expired reports whether the identity is no longer valid at now.
func (i *Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}
