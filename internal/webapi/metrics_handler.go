package webapi

import (
	"net/http"

	"roomclient/internal/metrics"
)

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(metrics.Get().ToJSON())
}
