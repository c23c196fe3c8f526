// Package negotiation picks a payment offer from a server's accepted list
// according to the client's preferences.
package negotiation

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/q402/q402-go/types"
)

// Preferences narrow the offer list. Each preference is advisory: a
// preference matching no offer is skipped rather than failing negotiation.
type Preferences struct {
	NetworkID string
	Scheme    string

	// MaxAmount is a decimal budget in atomic units. For batch offers the
	// item amounts are summed before comparing.
	MaxAmount string
}

// Select returns the first offer surviving the preference filters, or nil
// when the offer list is empty. Filters apply in order network, scheme,
// budget; a filter that would empty the candidate set is not committed.
func Select(offers []types.PaymentDetails, prefs *Preferences) *types.PaymentDetails {
	if len(offers) == 0 {
		return nil
	}

	candidates := make([]types.PaymentDetails, len(offers))
	copy(candidates, offers)

	if prefs != nil {
		if prefs.NetworkID != "" {
			candidates = narrow(candidates, func(o *types.PaymentDetails) bool {
				return o.NetworkID == prefs.NetworkID
			})
		}

		if prefs.Scheme != "" {
			candidates = narrow(candidates, func(o *types.PaymentDetails) bool {
				return o.Scheme == prefs.Scheme
			})
		}

		if prefs.MaxAmount != "" {
			if budget, err := decimal.NewFromString(prefs.MaxAmount); err == nil {
				candidates = narrow(candidates, func(o *types.PaymentDetails) bool {
					return withinBudget(o, budget)
				})
			}
		}
	}

	selected := candidates[0]
	return &selected
}

// narrow applies a filter but keeps the previous candidates when the filter
// matches nothing.
func narrow(candidates []types.PaymentDetails, keep func(*types.PaymentDetails) bool) []types.PaymentDetails {
	filtered := candidates[:0:0]
	for i := range candidates {
		if keep(&candidates[i]) {
			filtered = append(filtered, candidates[i])
		}
	}

	if len(filtered) == 0 {
		return candidates
	}
	return filtered
}

func withinBudget(offer *types.PaymentDetails, budget decimal.Decimal) bool {
	total := decimal.Zero

	if offer.IsBatch() {
		for _, item := range offer.Items {
			amount, err := decimal.NewFromString(item.Amount)
			if err != nil {
				return false
			}
			total = total.Add(amount)
		}
	} else {
		amount, err := decimal.NewFromString(offer.Amount)
		if err != nil {
			return false
		}
		total = amount
	}

	return total.LessThanOrEqual(budget)
}

// IsSupported reports whether the offer's scheme and network are both in the
// caller's supported sets. Clients check this before attempting to sign.
func IsSupported(offer *types.PaymentDetails, networks, schemes []string) bool {
	if offer == nil {
		return false
	}
	return contains(networks, offer.NetworkID) && contains(schemes, offer.Scheme)
}

func contains(set []string, value string) bool {
	for _, entry := range set {
		if strings.EqualFold(entry, value) {
			return true
		}
	}
	return false
}
