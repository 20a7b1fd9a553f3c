package cache

import "time"

// Cache namespaces. A namespace groups keys for bulk pattern invalidation;
// full keys are "<namespace>:<derivedKey>".
const (
	NSCart            = "cart"
	NSProduct         = "product"
	NSProducts        = "products"
	NSDiscounts       = "discounts"
	NSUserEmail       = "user_email"
	NSUserID          = "user_id"
	NSUserCredentials = "user_credentials"
	NSNumberOfUsers   = "number_of_users"

	// CleanAllPattern is swept once when the cache first becomes ready.
	CleanAllPattern = "*"
)

// TTL catalog.
const (
	TTLHour = time.Hour
	TTLDay  = 24 * time.Hour
)

// Key is a namespaced cache key. Name is derived deterministically from the
// operation's arguments at the call site.
type Key struct {
	Namespace string
	Name      string
}

func (k Key) String() string {
	return k.Namespace + ":" + k.Name
}

// Pattern matches every key in a namespace.
func Pattern(namespace string) string {
	return namespace + ":*"
}
