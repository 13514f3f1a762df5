// Command hasadctl runs and administers the Hasad agricultural ERP server.
//
// Hasad keeps the farm's shared knowledge (memories), its payment orders and
// debts, and a crop taxonomy behind a JSON API with token authentication.
//
// # Quick Start
//
//	# Generate a data key for encrypting MFA seeds and OAuth tokens
//	export HASAD_DATA_KEY=$(hasadctl data-key generate)
//
//	# Run database migrations
//	hasadctl db migrate
//
//	# Create the first administrator
//	hasadctl user create --username admin --email admin@example.org --role admin
//
//	# Start the server
//	hasadctl server
//
// Without a database the server can run on an in-memory store:
//
//	hasadctl server --in-memory
//
// # Environment Variables
//
//   - DATABASE_URL: PostgreSQL connection string
//   - HASAD_DATA_KEY: Base64-encoded 256-bit key for data encryption
//   - HASAD_TOKEN_KEY: Base64-encoded key (at least 32 bytes) signing access tokens
//   - HASAD_CONFIG_PATH: Directory holding hasad.yml (default: /etc/hasad/config)
//   - HASAD_LOG_LEVEL: debug enables SQL logging
//   - AUDIT_DATABASE_URL: PostgreSQL connection string for persisted audit events
//   - PORT, BIND_ADDRESS: Server listen address (default: 0.0.0.0:8000)
package main
