// Package apikey issues, lists, and revokes API keys scoped to an owner. Keys
// live in a CounterStore with a TTL, so an expired key simply disappears.
package apikey

import (
	"time"

	"github.com/unsungfields/gateway/pkg/apperrors"
)

// ErrNotFound indicates the API key does not exist, has expired, or does not
// belong to the owner.
var ErrNotFound = apperrors.New(apperrors.KindNotFound, "API key not found")

const (
	// DefaultTTL is how long an issued key stays valid.
	DefaultTTL = 30 * 24 * time.Hour
	// DefaultTag prefixes every key value.
	DefaultTag = "UFK_"

	secretLength  = 32
	previewLength = 3
)

// Key is a freshly issued credential. Value is only ever returned here.
type Key struct {
	Value       string
	Owner       string
	DisplayName string
	ExpiresAt   time.Time
}

// Summary is the listing view of a key. Preview shows the first characters of
// the key value and is a display aid, not a secret-preserving mask.
type Summary struct {
	DisplayName string
	Preview     string
}

func preview(value string) string {
	if len(value) <= previewLength {
		return value
	}
	return value[:previewLength]
}

func recordKey(owner, value string) string {
	return ownerPrefix(owner) + value
}

func ownerPrefix(owner string) string {
	return "api_key:" + owner + ":"
}

func indexKey(value string) string {
	return "api_key_owner:" + value
}
