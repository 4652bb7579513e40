package routes

import (
	"net/http"

	"nearby_server/controllers"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the handlers' collaborators.
type Dependencies struct {
	Ingestion controllers.SignalIngester
	Discovery controllers.Discoverer
	Auth      controllers.Authenticator
	// Metrics defaults to the Prometheus default registry
	Metrics http.Handler
}

// NewRouter sets up the routes for the application
func NewRouter(deps Dependencies) *mux.Router {
	if deps.Auth == nil {
		deps.Auth = controllers.HeaderAuthenticator{}
	}
	if deps.Metrics == nil {
		deps.Metrics = promhttp.Handler()
	}

	r := mux.NewRouter()
	r.Use(handlers.ProxyHeaders)
	r.Use(controllers.RequestID)
	r.Use(controllers.RequestLogger)

	r.HandleFunc("/", controllers.WelcomeHandler).Methods("GET")
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/privacy-policy", PrivacyPolicyHandler).Methods("GET")
	r.Handle("/metrics", deps.Metrics).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(controllers.RequireUser(deps.Auth))
	RegisterSignalRoutes(api, deps.Ingestion)
	RegisterDiscoveryRoutes(api, deps.Discovery)
	return r
}
