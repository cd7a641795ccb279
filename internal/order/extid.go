package order

import (
	"fmt"
	"strings"
)

// EncodeExternalOrderID builds the external order id stored against the order
// once a bill exists. The format is "{businessId}-{linkId}" and must
// round-trip to the same link id during callback verification.
func EncodeExternalOrderID(businessID string, linkID int64) string {
	return fmt.Sprintf("%s-%d", businessID, linkID)
}

// ParseExternalOrderID splits an external order id into business id and link
// id. The split is on the last hyphen so business ids containing hyphens
// survive the round trip.
func ParseExternalOrderID(extID string) (businessID, linkID string, err error) {
	idx := strings.LastIndex(extID, "-")
	if idx <= 0 || idx == len(extID)-1 {
		return "", "", fmt.Errorf("malformed external order id %q", extID)
	}
	return extID[:idx], extID[idx+1:], nil
}
