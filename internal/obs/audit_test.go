package obs_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flip-id/flip-checkout-service/internal/obs"
)

func auditWithBuffer(toggles obs.Audit) (*bytes.Buffer, obs.Audit) {
	buf := &bytes.Buffer{}
	toggles.Logger = zerolog.New(buf)
	return buf, toggles
}

func TestAuditDisabledCategoryDropsEvent(t *testing.T) {
	buf, audit := auditWithBuffer(obs.Audit{APIRequests: false})
	audit.APIRequest("POST", "https://bigflip.id/api/v2/pwf/bill", []byte(`{}`), []byte(`{}`), 200)
	assert.Zero(t, buf.Len())
}

func TestAuditAPIRequestRecordsFullPair(t *testing.T) {
	buf, audit := auditWithBuffer(obs.Audit{APIRequests: true})
	audit.APIRequest("POST", "https://bigflip.id/api/v2/pwf/bill",
		[]byte(`{"title":"ORD-1"}`), []byte(`{"status":"ACTIVE"}`), 200)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, obs.CategoryAPIRequest, line["category"])
	assert.Equal(t, `{"title":"ORD-1"}`, line["request_body"])
	assert.Equal(t, `{"status":"ACTIVE"}`, line["response_body"])
	assert.Equal(t, float64(200), line["http_status"])
}

func TestAuditCallbackReceivedDigestsToken(t *testing.T) {
	buf, audit := auditWithBuffer(obs.Audit{Callbacks: true})
	audit.CallbackReceived("/api/v1/payment/callback", "10.0.0.9", "abcd1234", `{"id":"TRX-1"}`)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, obs.CategoryCallback, line["category"])
	assert.Equal(t, "abcd1234", line["token_sha256"])
	assert.Equal(t, "10.0.0.9", line["client_ip"])
}

func TestAuditDebugfRespectsToggle(t *testing.T) {
	buf, audit := auditWithBuffer(obs.Audit{Debug: false})
	audit.Debugf("callback accepted for processing", map[string]any{"bill_link_id": "99"})
	assert.Zero(t, buf.Len())

	buf, audit = auditWithBuffer(obs.Audit{Debug: true})
	audit.Debugf("callback accepted for processing", map[string]any{"bill_link_id": "99"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, obs.CategoryDebug, line["category"])
	assert.Equal(t, "99", line["bill_link_id"])
}

func TestAuditErrorRespectsToggle(t *testing.T) {
	buf, audit := auditWithBuffer(obs.Audit{Errors: false})
	audit.Error("flip.Client.Send", errors.New("boom"))
	assert.Zero(t, buf.Len())

	buf, audit = auditWithBuffer(obs.Audit{Errors: true})
	audit.Error("flip.Client.Send", errors.New("boom"))
	assert.Contains(t, buf.String(), "flip.Client.Send")
}
