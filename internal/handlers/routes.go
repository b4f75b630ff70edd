package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Register adds the API, health and version routes to r.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/directories", h.ListDirectories).Methods(http.MethodGet)

	api.HandleFunc("/recycle-bin", h.ListRecycleBin).Methods(http.MethodGet)
	api.HandleFunc("/recycle-bin/empty", h.EmptyRecycleBin).Methods(http.MethodPost)
	api.HandleFunc("/recycle-bin/enabled", h.SetRecycleBinEnabled).Methods(http.MethodPut)
	api.HandleFunc("/trash", h.Trash).Methods(http.MethodPost)
	api.HandleFunc("/restore", h.Restore).Methods(http.MethodPost)
	api.HandleFunc("/delete", h.Delete).Methods(http.MethodPost)

	api.HandleFunc("/rename", h.Rename).Methods(http.MethodPost)
	api.HandleFunc("/move", h.Move).Methods(http.MethodPost)
	api.HandleFunc("/hide", h.Hide).Methods(http.MethodPost)
	api.HandleFunc("/rotate", h.Rotate).Methods(http.MethodPost)
	api.HandleFunc("/favorite", h.Favorite).Methods(http.MethodPost)

	api.HandleFunc("/fix-dates", h.FixDates).Methods(http.MethodPost)
	api.HandleFunc("/rescan", h.Rescan).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", h.GetTask).Methods(http.MethodGet)
}
