// Package server provides the HTTP server for the Hasad API.
//
// The Server holds the domain services, the router and the bearer
// middleware. Endpoints are registered by the endpoints subpackage:
//
//	srv := server.NewServer(cfg, services, "0.0.0.0", "8080")
//	endpoints.RegisterAll(srv)
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// Routes:
//
//   - /auth/... - registration, login, MFA, sessions, passwords and OAuth
//   - /admin/users/... - account administration (admin role)
//   - /api/memories, /api/tags, /api/entities - the knowledge store
//   - /api/payment-orders, /api/debts - the ledger
//   - /api/crops - the crop taxonomy
//   - /status - health
package server
