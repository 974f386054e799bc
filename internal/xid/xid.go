package xid

import "github.com/google/uuid"

// New returns a random identifier tagged with prefix, e.g. "order-3f0c...".
func New(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "-" + uuid.NewString()
}
