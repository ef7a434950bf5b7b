package services

import (
	"context"
	"time"
	"unicode/utf8"

	"amc-booking/internal/models"
)

const maxUserAgentLength = 500

// Clock supplies the current time; tests replace it.
type Clock func() time.Time

// RequestInfo is the provenance recorded on every audit entry.
type RequestInfo struct {
	IP        string
	UserAgent string
	// Resource is the requested path, used when recording denied access.
	Resource string
}

type requestInfoKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func RequestInfoFrom(ctx context.Context) RequestInfo {
	if v, ok := ctx.Value(requestInfoKey{}).(RequestInfo); ok {
		return v
	}
	return RequestInfo{IP: "0.0.0.0", UserAgent: "Unknown"}
}

// Identity is the trusted caller identity. It is only ever built from
// server-side session state, never from request input.
type Identity struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (i Identity) HasRole(roles ...string) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// IdentityOf reads the identity held by a session.
func IdentityOf(sess *models.Session) (Identity, bool) {
	if !sess.Authenticated() {
		return Identity{}, false
	}
	return Identity{UserID: *sess.UserID, Username: sess.Username, Role: sess.Role}, true
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
