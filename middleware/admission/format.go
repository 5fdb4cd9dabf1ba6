package admission

import (
	"encoding/json"
	"net/http"
	"strconv"

	"admission-gateway/middleware/admission/domain"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// setRateLimitHeaders escreve os headers X-RateLimit-* de uma decisão.
func setRateLimitHeaders(h http.Header, dec domain.Decision) {
	h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
	h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
}

// WriteError responde a rejeição como JSON. Nunca deixa um panic chegar ao transporte.
func WriteError(w http.ResponseWriter, gerr *domain.GatewayError) {
	if gerr == nil {
		gerr = domain.Internal("unknown admission failure")
	}
	if gerr.Decision != nil {
		setRateLimitHeaders(w.Header(), *gerr.Decision)
		w.Header().Set("Retry-After", formatInt(gerr.Decision.ResetSeconds))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(gerr.Code)
	_ = json.NewEncoder(w).Encode(gerr)
}
