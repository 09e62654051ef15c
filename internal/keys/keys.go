// Package keys builds the composite string keys entities are stored
// under. Component ids are canonical hex/decimal/base58 encodings, none
// of which contain ':', so the separator can never collide with id
// content and composite keys stay unambiguous.
package keys

import (
	"fmt"
	"strings"
)

// Separator joins key components.
const Separator = ":"

// Pair builds an order-dependent pairwise key: Pair(a, b) != Pair(b, a).
func Pair(parent, child string) string {
	return parent + Separator + child
}

// Compose joins any number of components into one composite key.
func Compose(parts ...string) string {
	return strings.Join(parts, Separator)
}

// Bucketed appends a calendar bucket to an existing scope key.
func Bucketed(scope, bucket string) string {
	return scope + Separator + bucket
}

// Delivery builds the stable per-event identifier from the transaction
// hash and log index, matching the id the chain-gateway publishes.
func Delivery(txHash string, logIndex uint32) string {
	return fmt.Sprintf("%s%s%d", txHash, Separator, logIndex)
}
