package httpserver

import "net/http"

// Routes groups handlers.
type Routes struct {
	Entry          http.HandlerFunc
	Exit           http.HandlerFunc
	Slots          http.HandlerFunc
	ActiveSessions http.HandlerFunc
	InvoiceSummary http.HandlerFunc
	Notifications  http.HandlerFunc
	Health         http.HandlerFunc
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.Entry != nil {
		mux.Handle("/parking/entry", method(http.MethodPost, routes.Entry))
	}
	if routes.Exit != nil {
		mux.Handle("/parking/exit", method(http.MethodPost, routes.Exit))
	}
	if routes.Slots != nil {
		mux.Handle("/parking/slots", method(http.MethodGet, routes.Slots))
	}
	if routes.ActiveSessions != nil {
		mux.Handle("/sessions/active", method(http.MethodGet, routes.ActiveSessions))
	}
	if routes.InvoiceSummary != nil {
		mux.Handle("/reporting/invoices", method(http.MethodGet, routes.InvoiceSummary))
	}
	if routes.Notifications != nil {
		mux.Handle("/ws/notifications", method(http.MethodGet, routes.Notifications))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
