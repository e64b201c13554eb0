package web

import (
	_ "embed"
	"net/http"
)

//go:embed dashboard.html
var dashboard []byte

// ServeDashboard serves the live detection dashboard
func ServeDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	w.Write(dashboard)
}
