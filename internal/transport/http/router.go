package http

import (
	"net/http"
)

// NewRouter mounts the service endpoints. metrics may be nil.
func NewRouter(rooms *RoomsHandler, ws *WSHandler, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	mux.HandleFunc("POST /rooms", rooms.Create)
	mux.HandleFunc("GET /rooms/{roomId}", rooms.Get)
	mux.HandleFunc("GET /ws", ws.ServeWS)
	return mux
}
