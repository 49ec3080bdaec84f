// Package billing reconciles RevenueCat subscription events onto the
// athlete and club subscription flags.
package billing

// Entitlement is one of the two products the platform sells.
type Entitlement int

const (
	// EntitlementBasic unlocks an athlete's profile for distribution.
	EntitlementBasic Entitlement = iota + 1
	// EntitlementWhiteLabel enables club branding in outgoing emails.
	EntitlementWhiteLabel
)

func (e Entitlement) String() string {
	switch e {
	case EntitlementBasic:
		return "basic"
	case EntitlementWhiteLabel:
		return "white_label"
	default:
		return "unknown"
	}
}

// EntitlementRegistry maps provider entitlement identifiers to Entitlement.
type EntitlementRegistry struct {
	byID map[string]Entitlement
}

// NewEntitlementRegistry builds the mapping from the configured identifiers.
func NewEntitlementRegistry(basicID, whiteLabelID string) *EntitlementRegistry {
	return &EntitlementRegistry{byID: map[string]Entitlement{
		basicID:      EntitlementBasic,
		whiteLabelID: EntitlementWhiteLabel,
	}}
}

// Lookup returns the entitlement for a provider identifier.
func (r *EntitlementRegistry) Lookup(id string) (Entitlement, bool) {
	e, ok := r.byID[id]
	return e, ok
}
