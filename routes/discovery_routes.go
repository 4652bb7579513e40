package routes

import (
	"nearby_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterDiscoveryRoutes sets up routes for discovery under /discover on the authenticated API router
func RegisterDiscoveryRoutes(r *mux.Router, discovery controllers.Discoverer) {
	controller := controllers.NewDiscoveryController(discovery)

	discoverRouter := r.PathPrefix("/discover").Subrouter()
	discoverRouter.HandleFunc("/{channel}", controller.Discover).Methods("GET", "POST")
}
