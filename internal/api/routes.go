package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Fund settings and info
	api.HandleFunc("/funds", handler.GetFunds).Methods("GET")
	api.HandleFunc("/funds", handler.SaveFund).Methods("POST")
	api.HandleFunc("/funds/{code}", handler.GetFund).Methods("GET")
	api.HandleFunc("/funds/{code}", handler.DeleteFund).Methods("DELETE")

	// NAV resolution
	api.HandleFunc("/funds/{code}/nav", handler.GetCurrentNav).Methods("GET")
	api.HandleFunc("/funds/{code}/nav/{date}", handler.GetHistoricalNav).Methods("GET")
	api.HandleFunc("/navs/refresh", handler.RefreshNavs).Methods("POST")

	// Ledger
	api.HandleFunc("/transactions", handler.GetTransactions).Methods("GET")
	api.HandleFunc("/transactions", handler.RecordTransaction).Methods("POST")
	api.HandleFunc("/transactions/{id}", handler.UpdateTransaction).Methods("PUT")
	api.HandleFunc("/transactions/{id}", handler.DeleteTransaction).Methods("DELETE")

	// Holdings snapshot
	api.HandleFunc("/holdings", handler.GetHoldings).Methods("GET")

	return r
}
