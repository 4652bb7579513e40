package routes

import (
	"nearby_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterSignalRoutes sets up routes for signal updates under /signal on the authenticated API router
func RegisterSignalRoutes(r *mux.Router, ingestion controllers.SignalIngester) {
	controller := controllers.NewSignalController(ingestion)

	signalRouter := r.PathPrefix("/signal").Subrouter()
	signalRouter.HandleFunc("/{channel}", controller.UpdateSignal).Methods("PUT")
}
