// Package config provides configuration management for Hasad.
//
// Configuration is layered. Defaults are applied first, then values from
// hasad.yml, then HASAD_* environment variables. Every attribute remembers
// which layer it came from so that "hasadctl configuration show" can report it.
//
// # Configuration Sources
//
//   - HASAD_CONFIG_PATH: directory holding hasad.yml (default /etc/hasad/config)
//   - HASAD_<ATTRIBUTE>: overrides a single attribute, e.g. HASAD_MAX_FAILED_LOGINS
//
// # Key Configuration Options
//
//   - max_failed_logins / lockout_duration: account lockout policy
//   - access_token_ttl / refresh_token_ttl / session_ttl: token lifetimes
//   - embedding_provider: none, ollama or openai for semantic memory search
//   - oauth_providers: identity providers accepted for account linking
//
// The file is watched by the server; edits take effect without a restart.
package config
