package sessions

import (
	"time"

	"github.com/goliatone/go-router"
)

// Cookie policy is fixed except for the expiry window: the envelope must
// never outlive the token claim it carries.
const (
	// CookieName is the session cookie name.
	CookieName = "token"
	// CookieDuration is the default cookie lifetime, equal to the default
	// token TTL.
	CookieDuration = time.Duration(DefaultTokenExpiration) * time.Hour
)

// CookieTransport carries session tokens in a fixed-policy cookie. The only
// adjustable knob is the expiry window, which follows the token TTL and is
// clamped so the cookie can never outlive the token it carries.
type CookieTransport struct {
	ttl time.Duration
}

// NewCookieTransport creates the cookie transport with the default window.
func NewCookieTransport() CookieTransport {
	return CookieTransport{}
}

// WithExpiry returns a transport whose cookie expiry matches tokenTTL.
// Deployments configuring a shorter token TTL pass it here so the cookie
// dies with the token. Zero or anything past the default keeps the default.
func (t CookieTransport) WithExpiry(tokenTTL time.Duration) CookieTransport {
	t.ttl = tokenTTL
	return t
}

func (t CookieTransport) window() time.Duration {
	if t.ttl > 0 && t.ttl < CookieDuration {
		return t.ttl
	}
	return CookieDuration
}

// Attach sets the session cookie on the outgoing response.
func (t CookieTransport) Attach(c router.Context, token string) {
	c.Cookie(&router.Cookie{
		Name:     CookieName,
		Value:    token,
		Expires:  time.Now().Add(t.window()),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// Detach expires the session cookie. Idempotent: detaching an absent cookie
// is not an error.
func (t CookieTransport) Detach(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     CookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// Extract reads the session token from the incoming request, reporting
// whether one was present.
func (t CookieTransport) Extract(c router.Context) (string, bool) {
	raw := c.Cookies(CookieName)
	return raw, raw != ""
}
