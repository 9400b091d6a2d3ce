package handler

import (
	"net/http"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}
