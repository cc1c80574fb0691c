package quota

import "math"

// Unlimited is the per-portal cap when no global item limit is set.
const Unlimited = math.MaxInt

// PerPortal splits a global item limit evenly across portals, rounding
// up so the sum of caps always covers the limit. The orchestrator
// enforces the hard global cap separately. A nil maxItems means
// unlimited; a non-positive portal count yields a zero cap.
func PerPortal(maxItems *int, portalCount int) int {
	if portalCount <= 0 {
		return 0
	}
	if maxItems == nil {
		return Unlimited
	}
	return (*maxItems + portalCount - 1) / portalCount
}
