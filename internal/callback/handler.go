package callback

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/flip-id/flip-checkout-service/internal/common"
	"github.com/flip-id/flip-checkout-service/internal/config"
	"github.com/flip-id/flip-checkout-service/internal/flip"
	"github.com/flip-id/flip-checkout-service/internal/obs"
)

// Handler terminates the provider webhook. Whatever happens inside, the
// transport answer is HTTP 200: Flip retries on non-200 responses, and a
// permanently bad payload would be retried forever.
type Handler struct {
	Cfg       *config.Config
	Processor Processor
	Validate  *validator.Validate
	Audit     obs.Audit
}

// Serve handles /api/v1/payment/callback. The raw request is written to the
// callback audit sink before any validation runs, so rejected attempts leave
// a trail too.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.Audit.CallbackReceived(r.URL.Path, common.ClientIP(r), "", "")
		h.respond(w, common.ErrorEnvelope(http.StatusBadRequest, "Invalid request method"), nil)
		return
	}

	// A body that fails form parsing leaves token and data empty and falls
	// through the token check below.
	parseErr := r.ParseForm()
	token := r.PostFormValue("token")
	data := r.PostFormValue("data")
	h.Audit.CallbackReceived(r.URL.Path, common.ClientIP(r), common.Sha256Hex(token), data)
	if parseErr != nil {
		h.Audit.Error("callback form parse", parseErr)
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(h.Cfg.ValidationKey())) != 1 {
		h.respond(w, common.ErrorEnvelope(http.StatusBadRequest, "Invalid token"), nil)
		return
	}
	if strings.TrimSpace(data) == "" {
		h.respond(w, common.ErrorEnvelope(http.StatusBadRequest, "Empty callback data"), nil)
		return
	}

	var cb flip.CallbackPayload
	if err := json.Unmarshal([]byte(data), &cb); err != nil {
		h.respond(w, common.ErrorEnvelope(http.StatusBadRequest, "Invalid JSON data"), err)
		return
	}
	if err := h.Validate.Struct(cb); err != nil {
		h.respond(w, common.ErrorEnvelope(http.StatusBadRequest,
			"missing required field: "+firstMissingField(err)), err)
		return
	}

	h.Audit.Debugf("callback accepted for processing", map[string]any{
		"bill_link_id": cb.BillLinkID.String(),
		"trx_id":       cb.ID.String(),
		"status":       cb.Status,
	})

	env := h.Processor.Process(r.Context(), cb, []byte(data))
	h.respond(w, env, nil)
}

func (h *Handler) respond(w http.ResponseWriter, env common.Envelope, cause error) {
	h.Audit.CallbackResponded(env.StatusCode, env.Status, env.Message, cause)
	if cause != nil {
		h.Audit.Error("payment callback", cause)
	}
	common.JSON(w, http.StatusOK, env)
}

// callbackFieldNames maps struct fields to the wire names used in responses.
var callbackFieldNames = map[string]string{
	"ID":         "id",
	"Amount":     "amount",
	"Status":     "status",
	"BillLinkID": "bill_link_id",
}

func firstMissingField(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if name, found := callbackFieldNames[verrs[0].StructField()]; found {
			return name
		}
		return strings.ToLower(verrs[0].StructField())
	}
	return "unknown"
}
