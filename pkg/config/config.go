package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "/etc/hasad/config"
	ConfigFileName    = "hasad.yml"
)

// ValidEmbeddingProviders is the list of supported embedding backends
var ValidEmbeddingProviders = []string{"none", "ollama", "openai"}

// OAuthProvider describes an external identity provider whose ID tokens
// can be linked to local accounts
type OAuthProvider struct {
	Name       string `yaml:"name" json:"name"`
	Issuer     string `yaml:"issuer" json:"issuer"`
	JWKSURI    string `yaml:"jwks_uri" json:"jwks_uri"`
	Audience   string `yaml:"audience" json:"audience"`
	HMACSecret string `yaml:"hmac_secret" json:"-"`
}

// HasadConfig holds all Hasad configuration settings
type HasadConfig struct {
	// TrustedProxies is a list of CIDR ranges for trusted proxies
	TrustedProxies []string `yaml:"trusted_proxies" json:"trusted_proxies"`

	// APIListLimitMax is the maximum number of results for listing requests
	APIListLimitMax int `yaml:"api_list_limit_max" json:"api_list_limit_max"`

	// AccessTokenTTL is the lifetime of access tokens in seconds
	AccessTokenTTL int `yaml:"access_token_ttl" json:"access_token_ttl"`

	// RefreshTokenTTL is the lifetime of refresh tokens in seconds
	RefreshTokenTTL int `yaml:"refresh_token_ttl" json:"refresh_token_ttl"`

	// SessionTTL is the lifetime of a login session in seconds
	SessionTTL int `yaml:"session_ttl" json:"session_ttl"`

	// PasswordResetTTL is the lifetime of password reset tokens in seconds
	PasswordResetTTL int `yaml:"password_reset_ttl" json:"password_reset_ttl"`

	// MFAChallengeTTL is how long a half-finished MFA login stays valid, in seconds
	MFAChallengeTTL int `yaml:"mfa_challenge_ttl" json:"mfa_challenge_ttl"`

	// MaxFailedLogins is the number of consecutive failures that locks an account
	MaxFailedLogins int `yaml:"max_failed_logins" json:"max_failed_logins"`

	// LockoutDuration is how long a locked account stays locked, in seconds
	LockoutDuration int `yaml:"lockout_duration" json:"lockout_duration"`

	// PasswordMinLength is the minimum accepted password length
	PasswordMinLength int `yaml:"password_min_length" json:"password_min_length"`

	// MFAIssuer is shown by authenticator apps next to the account name
	MFAIssuer string `yaml:"mfa_issuer" json:"mfa_issuer"`

	// MFABackupCodes is the number of backup codes generated per setup
	MFABackupCodes int `yaml:"mfa_backup_codes" json:"mfa_backup_codes"`

	// EmbeddingProvider selects the embedding backend for semantic memory search
	EmbeddingProvider string `yaml:"embedding_provider" json:"embedding_provider"`

	// EmbeddingModel is the model name passed to the embedding backend
	EmbeddingModel string `yaml:"embedding_model" json:"embedding_model"`

	// EmbeddingURL is the base URL of the embedding backend
	EmbeddingURL string `yaml:"embedding_url" json:"embedding_url"`

	// OAuthProviders lists the identity providers accepted for account linking
	OAuthProviders []OAuthProvider `yaml:"oauth_providers" json:"oauth_providers"`

	// TaskWorkers is the number of background workers
	TaskWorkers int `yaml:"task_workers" json:"task_workers"`

	// TaskQueueSize bounds the number of pending background tasks
	TaskQueueSize int `yaml:"task_queue_size" json:"task_queue_size"`

	// AuditKafkaBrokers enables publishing audit events to Kafka
	AuditKafkaBrokers []string `yaml:"audit_kafka_brokers" json:"audit_kafka_brokers"`

	// AuditKafkaTopic is the topic audit events are published to
	AuditKafkaTopic string `yaml:"audit_kafka_topic" json:"audit_kafka_topic"`

	// sources tracks where each value came from
	sources map[string]string

	// configFilePath is the path to the config file
	configFilePath string
}

// Attribute represents a configuration attribute with its value and source
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Global singleton config
var (
	globalConfig *HasadConfig
	configMu     sync.RWMutex
)

// Get returns the global configuration, loading it if necessary
func Get() *HasadConfig {
	configMu.RLock()
	if globalConfig != nil {
		configMu.RUnlock()
		return globalConfig
	}
	configMu.RUnlock()

	configMu.Lock()
	defer configMu.Unlock()

	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			// Return defaults on error
			globalConfig = Default()
		} else {
			globalConfig = cfg
		}
	}
	return globalConfig
}

// Reload reloads the configuration from file and environment
func Reload() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return nil
}

// Default returns a config with default values
func Default() *HasadConfig {
	return &HasadConfig{
		TrustedProxies:    []string{},
		APIListLimitMax:   1000,
		AccessTokenTTL:    1800,
		RefreshTokenTTL:   7 * 24 * 3600,
		SessionTTL:        24 * 3600,
		PasswordResetTTL:  3600,
		MFAChallengeTTL:   300,
		MaxFailedLogins:   5,
		LockoutDuration:   1800,
		PasswordMinLength: 8,
		MFAIssuer:         "Hasad",
		MFABackupCodes:    10,
		EmbeddingProvider: "none",
		TaskWorkers:       2,
		TaskQueueSize:     256,
		AuditKafkaTopic:   "hasad.audit",
		sources:           make(map[string]string),
	}
}

// Load loads configuration from file and environment variables
// Environment variables take precedence over file values
func Load() (*HasadConfig, error) {
	config := Default()

	for _, name := range attributeNames() {
		config.sources[name] = "default"
	}

	configPath := os.Getenv("HASAD_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	config.configFilePath = filepath.Join(configPath, ConfigFileName)

	if data, err := os.ReadFile(config.configFilePath); err == nil {
		var fileConfig HasadConfig
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", config.configFilePath, err)
		}
		config.applyFileConfig(&fileConfig)
	}

	config.applyEnvConfig()

	return config, nil
}

func attributeNames() []string {
	return []string{
		"trusted_proxies", "api_list_limit_max",
		"access_token_ttl", "refresh_token_ttl", "session_ttl",
		"password_reset_ttl", "mfa_challenge_ttl",
		"max_failed_logins", "lockout_duration", "password_min_length",
		"mfa_issuer", "mfa_backup_codes",
		"embedding_provider", "embedding_model", "embedding_url",
		"oauth_providers", "task_workers", "task_queue_size",
		"audit_kafka_brokers", "audit_kafka_topic",
	}
}

func (c *HasadConfig) applyFileConfig(file *HasadConfig) {
	if len(file.TrustedProxies) > 0 {
		c.TrustedProxies = file.TrustedProxies
		c.sources["trusted_proxies"] = "file"
	}
	ints := []struct {
		name string
		src  int
		dst  *int
	}{
		{"api_list_limit_max", file.APIListLimitMax, &c.APIListLimitMax},
		{"access_token_ttl", file.AccessTokenTTL, &c.AccessTokenTTL},
		{"refresh_token_ttl", file.RefreshTokenTTL, &c.RefreshTokenTTL},
		{"session_ttl", file.SessionTTL, &c.SessionTTL},
		{"password_reset_ttl", file.PasswordResetTTL, &c.PasswordResetTTL},
		{"mfa_challenge_ttl", file.MFAChallengeTTL, &c.MFAChallengeTTL},
		{"max_failed_logins", file.MaxFailedLogins, &c.MaxFailedLogins},
		{"lockout_duration", file.LockoutDuration, &c.LockoutDuration},
		{"password_min_length", file.PasswordMinLength, &c.PasswordMinLength},
		{"mfa_backup_codes", file.MFABackupCodes, &c.MFABackupCodes},
		{"task_workers", file.TaskWorkers, &c.TaskWorkers},
		{"task_queue_size", file.TaskQueueSize, &c.TaskQueueSize},
	}
	for _, v := range ints {
		if v.src != 0 {
			*v.dst = v.src
			c.sources[v.name] = "file"
		}
	}
	strs := []struct {
		name string
		src  string
		dst  *string
	}{
		{"mfa_issuer", file.MFAIssuer, &c.MFAIssuer},
		{"embedding_provider", file.EmbeddingProvider, &c.EmbeddingProvider},
		{"embedding_model", file.EmbeddingModel, &c.EmbeddingModel},
		{"embedding_url", file.EmbeddingURL, &c.EmbeddingURL},
		{"audit_kafka_topic", file.AuditKafkaTopic, &c.AuditKafkaTopic},
	}
	for _, v := range strs {
		if v.src != "" {
			*v.dst = v.src
			c.sources[v.name] = "file"
		}
	}
	if len(file.OAuthProviders) > 0 {
		c.OAuthProviders = file.OAuthProviders
		c.sources["oauth_providers"] = "file"
	}
	if len(file.AuditKafkaBrokers) > 0 {
		c.AuditKafkaBrokers = file.AuditKafkaBrokers
		c.sources["audit_kafka_brokers"] = "file"
	}
}

func (c *HasadConfig) applyEnvConfig() {
	if val := os.Getenv("HASAD_TRUSTED_PROXIES"); val != "" {
		c.TrustedProxies = splitAndTrim(val)
		c.sources["trusted_proxies"] = "environment"
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"api_list_limit_max", &c.APIListLimitMax},
		{"access_token_ttl", &c.AccessTokenTTL},
		{"refresh_token_ttl", &c.RefreshTokenTTL},
		{"session_ttl", &c.SessionTTL},
		{"password_reset_ttl", &c.PasswordResetTTL},
		{"mfa_challenge_ttl", &c.MFAChallengeTTL},
		{"max_failed_logins", &c.MaxFailedLogins},
		{"lockout_duration", &c.LockoutDuration},
		{"password_min_length", &c.PasswordMinLength},
		{"mfa_backup_codes", &c.MFABackupCodes},
		{"task_workers", &c.TaskWorkers},
		{"task_queue_size", &c.TaskQueueSize},
	}
	for _, v := range ints {
		if val := os.Getenv(envName(v.name)); val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				*v.dst = i
				c.sources[v.name] = "environment"
			}
		}
	}
	strs := []struct {
		name string
		dst  *string
	}{
		{"mfa_issuer", &c.MFAIssuer},
		{"embedding_provider", &c.EmbeddingProvider},
		{"embedding_model", &c.EmbeddingModel},
		{"embedding_url", &c.EmbeddingURL},
		{"audit_kafka_topic", &c.AuditKafkaTopic},
	}
	for _, v := range strs {
		if val := os.Getenv(envName(v.name)); val != "" {
			*v.dst = val
			c.sources[v.name] = "environment"
		}
	}
	if val := os.Getenv("HASAD_AUDIT_KAFKA_BROKERS"); val != "" {
		c.AuditKafkaBrokers = splitAndTrim(val)
		c.sources["audit_kafka_brokers"] = "environment"
	}
}

func envName(attribute string) string {
	return "HASAD_" + strings.ToUpper(attribute)
}

// ConfigFilePath returns the path to the config file
func (c *HasadConfig) ConfigFilePath() string {
	return c.configFilePath
}

// Source returns the source of a configuration attribute
func (c *HasadConfig) Source(name string) string {
	if c.sources == nil {
		return "default"
	}
	if s, ok := c.sources[name]; ok {
		return s
	}
	return "default"
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// AccessTTL returns the access token TTL as a duration
func (c *HasadConfig) AccessTTL() time.Duration { return seconds(c.AccessTokenTTL) }

// RefreshTTL returns the refresh token TTL as a duration
func (c *HasadConfig) RefreshTTL() time.Duration { return seconds(c.RefreshTokenTTL) }

// SessionLifetime returns the session TTL as a duration
func (c *HasadConfig) SessionLifetime() time.Duration { return seconds(c.SessionTTL) }

// ResetTTL returns the password reset token TTL as a duration
func (c *HasadConfig) ResetTTL() time.Duration { return seconds(c.PasswordResetTTL) }

// ChallengeTTL returns the MFA challenge TTL as a duration
func (c *HasadConfig) ChallengeTTL() time.Duration { return seconds(c.MFAChallengeTTL) }

// Lockout returns the lockout duration
func (c *HasadConfig) Lockout() time.Duration { return seconds(c.LockoutDuration) }

// OAuthProvider returns the named provider configuration
func (c *HasadConfig) OAuthProvider(name string) (OAuthProvider, bool) {
	for _, p := range c.OAuthProviders {
		if p.Name == name {
			return p, true
		}
	}
	return OAuthProvider{}, false
}

// IsTrustedProxy checks if an IP is from a trusted proxy
func (c *HasadConfig) IsTrustedProxy(ip string) bool {
	if len(c.TrustedProxies) == 0 {
		return false
	}

	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, cidr := range c.TrustedProxies {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			// Try as plain IP
			if net.ParseIP(cidr) != nil && cidr == ip {
				return true
			}
			continue
		}
		if network.Contains(parsedIP) {
			return true
		}
	}
	return false
}

// Validate validates the configuration
func (c *HasadConfig) Validate() error {
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			if net.ParseIP(cidr) == nil {
				return fmt.Errorf("invalid trusted_proxies value: %s", cidr)
			}
		}
	}

	valid := false
	for _, p := range ValidEmbeddingProviders {
		if c.EmbeddingProvider == p {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid embedding_provider: %s", c.EmbeddingProvider)
	}

	if c.MaxFailedLogins < 1 {
		return fmt.Errorf("max_failed_logins must be at least 1")
	}
	if c.PasswordMinLength < 6 {
		return fmt.Errorf("password_min_length must be at least 6")
	}
	if c.TaskWorkers < 1 || c.TaskQueueSize < 1 {
		return fmt.Errorf("task_workers and task_queue_size must be positive")
	}

	seen := make(map[string]bool)
	for _, p := range c.OAuthProviders {
		if p.Name == "" {
			return fmt.Errorf("oauth provider without a name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate oauth provider: %s", p.Name)
		}
		seen[p.Name] = true
		if p.JWKSURI == "" && p.Issuer == "" && p.HMACSecret == "" {
			return fmt.Errorf("oauth provider %s needs issuer, jwks_uri or hmac_secret", p.Name)
		}
	}

	return nil
}

// Attributes returns all configuration attributes with their values and sources
func (c *HasadConfig) Attributes() []Attribute {
	providers := make([]string, 0, len(c.OAuthProviders))
	for _, p := range c.OAuthProviders {
		providers = append(providers, p.Name)
	}
	return []Attribute{
		{Name: "trusted_proxies", Value: strings.Join(c.TrustedProxies, ","), Source: c.Source("trusted_proxies")},
		{Name: "api_list_limit_max", Value: strconv.Itoa(c.APIListLimitMax), Source: c.Source("api_list_limit_max")},
		{Name: "access_token_ttl", Value: strconv.Itoa(c.AccessTokenTTL), Source: c.Source("access_token_ttl")},
		{Name: "refresh_token_ttl", Value: strconv.Itoa(c.RefreshTokenTTL), Source: c.Source("refresh_token_ttl")},
		{Name: "session_ttl", Value: strconv.Itoa(c.SessionTTL), Source: c.Source("session_ttl")},
		{Name: "password_reset_ttl", Value: strconv.Itoa(c.PasswordResetTTL), Source: c.Source("password_reset_ttl")},
		{Name: "mfa_challenge_ttl", Value: strconv.Itoa(c.MFAChallengeTTL), Source: c.Source("mfa_challenge_ttl")},
		{Name: "max_failed_logins", Value: strconv.Itoa(c.MaxFailedLogins), Source: c.Source("max_failed_logins")},
		{Name: "lockout_duration", Value: strconv.Itoa(c.LockoutDuration), Source: c.Source("lockout_duration")},
		{Name: "password_min_length", Value: strconv.Itoa(c.PasswordMinLength), Source: c.Source("password_min_length")},
		{Name: "mfa_issuer", Value: c.MFAIssuer, Source: c.Source("mfa_issuer")},
		{Name: "mfa_backup_codes", Value: strconv.Itoa(c.MFABackupCodes), Source: c.Source("mfa_backup_codes")},
		{Name: "embedding_provider", Value: c.EmbeddingProvider, Source: c.Source("embedding_provider")},
		{Name: "embedding_model", Value: c.EmbeddingModel, Source: c.Source("embedding_model")},
		{Name: "embedding_url", Value: c.EmbeddingURL, Source: c.Source("embedding_url")},
		{Name: "oauth_providers", Value: strings.Join(providers, ","), Source: c.Source("oauth_providers")},
		{Name: "task_workers", Value: strconv.Itoa(c.TaskWorkers), Source: c.Source("task_workers")},
		{Name: "task_queue_size", Value: strconv.Itoa(c.TaskQueueSize), Source: c.Source("task_queue_size")},
		{Name: "audit_kafka_brokers", Value: strings.Join(c.AuditKafkaBrokers, ","), Source: c.Source("audit_kafka_brokers")},
		{Name: "audit_kafka_topic", Value: c.AuditKafkaTopic, Source: c.Source("audit_kafka_topic")},
	}
}

// FormatText returns a text representation of the configuration
func (c *HasadConfig) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config file: %s\n\n", c.configFilePath))
	sb.WriteString(fmt.Sprintf("%-30s %-30s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-30s %-30s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-30s %-30s %s\n", attr.Name, value, attr.Source))
	}
	return sb.String()
}

// FormatJSON returns a JSON representation of the configuration
func (c *HasadConfig) FormatJSON() (string, error) {
	result := map[string]interface{}{
		"config_file": c.configFilePath,
		"attributes":  c.Attributes(),
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
