package endpoints

import (
	"log"
	"net/http"
	"os"

	"github.com/hasad-erp/hasad/pkg/server"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// StatusResponse is the body of GET /status
type StatusResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

// RegisterStatusEndpoints registers the health endpoint
func RegisterStatusEndpoints(s *server.Server) {
	// GET /status - health (no auth required)
	s.Router.HandleFunc("/status", handleStatus(s.HealthStore)).Methods("GET")
}

func handleStatus(healthStore store.HealthStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := os.Getenv("HASAD_VERSION_DISPLAY")
		if version == "" {
			version = "0.1.0"
		}

		resp := StatusResponse{Status: "ok", Version: version, Database: "ok"}
		if healthStore != nil {
			if err := healthStore.CheckConnectivity(); err != nil {
				log.Printf("status: database check failed: %v", err)
				resp.Status = "error"
				resp.Database = "unreachable"
				respondWithJSON(w, http.StatusServiceUnavailable, resp)
				return
			}
		}
		respondWithJSON(w, http.StatusOK, resp)
	}
}
