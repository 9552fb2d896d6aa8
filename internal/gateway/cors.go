package gateway

import "net/http"

// SetCORS sets permissive CORS headers for method, mirroring
// hathor.api_util.set_cors as referenced from
// original_source/hathor/wallet/resources/thin_wallet/send_tokens.py.
// It is exported so internal/mining's send_tokens endpoint, the one
// in-scope REST handler, can reuse it without pulling in the rest of
// the original's REST/OpenAPI plumbing (an explicit Non-goal).
func SetCORS(w http.ResponseWriter, method string) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", method+", OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

// RenderOptions replies to an OPTIONS preflight request, mirroring
// hathor.api_util.render_options.
func RenderOptions(w http.ResponseWriter, method string) {
	SetCORS(w, method)
	w.WriteHeader(http.StatusNoContent)
}
