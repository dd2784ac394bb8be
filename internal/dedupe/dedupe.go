// Package dedupe computes the stable identity of an incoming deal from its
// provider-natural key, used by the deal store to decide insert vs update.
package dedupe

import (
	"fmt"
	"strings"
	"time"

	"tripsignal/matcher-service/internal/model"
)

// Resolve derives the dedupe key for a deal: a delimited concatenation of the
// six natural-key fields. Same inputs always produce the same key; two offers
// share a key exactly when they are "the same offer at the same price".
func Resolve(provider, origin, destination string, departDate, returnDate time.Time, priceCents int) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s:%d",
		strings.ToLower(strings.TrimSpace(provider)),
		strings.ToUpper(strings.TrimSpace(origin)),
		strings.ToUpper(strings.TrimSpace(destination)),
		departDate.Format("2006-01-02"),
		returnDate.Format("2006-01-02"),
		priceCents,
	)
}

// ForDeal resolves the dedupe key from a deal's own fields.
func ForDeal(d model.Deal) string {
	return Resolve(d.Provider, d.Origin, d.Destination, d.DepartDate, d.ReturnDate, d.PriceCents)
}
