package order_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flip-id/flip-checkout-service/internal/order"
)

func TestExternalOrderIDRoundTrip(t *testing.T) {
	cases := []struct {
		businessID string
		linkID     int64
	}{
		{"BIZ9", 9912},
		{"shop-id-42", 1},
		{"0", 9223372036854775807},
	}
	for _, tc := range cases {
		encoded := order.EncodeExternalOrderID(tc.businessID, tc.linkID)
		biz, link, err := order.ParseExternalOrderID(encoded)
		require.NoError(t, err, encoded)
		assert.Equal(t, tc.businessID, biz)
		assert.Equal(t, order.EncodeExternalOrderID(tc.businessID, tc.linkID),
			biz+"-"+link)
	}
}

func TestParseExternalOrderIDMalformed(t *testing.T) {
	for _, in := range []string{"", "no-hyphen-", "-123", "plain"} {
		_, _, err := order.ParseExternalOrderID(in)
		assert.Error(t, err, in)
	}
}
