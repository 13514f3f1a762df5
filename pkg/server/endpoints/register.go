package endpoints

import (
	"github.com/hasad-erp/hasad/pkg/server"
)

// RegisterAll registers all API endpoints on the server
func RegisterAll(srv *server.Server) {
	RegisterStatusEndpoints(srv)
	RegisterAuthEndpoints(srv)
	RegisterAdminEndpoints(srv)
	RegisterMemoryEndpoints(srv)
	RegisterLedgerEndpoints(srv)
	RegisterTaxonomyEndpoints(srv)
}
