package audit

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// SDID constants for structured data IDs (RFC5424). 32473 is the
// documentation PEN from RFC 5612.
const (
	HasadPEN    = 32473
	SDIDAuth    = "auth@32473"
	SDIDSubject = "subject@32473"
	SDIDAction  = "action@32473"
	SDIDClient  = "client@32473"
)

// AppName is the RFC5424 APP-NAME of every audit record
const AppName = "hasad"

// Syslog facility constants
const (
	FacilityAuth     = 4  // LOG_AUTH - security/authorization messages
	FacilityAuthPriv = 10 // LOG_AUTHPRIV - security/authorization messages (private)
	FacilityLocal0   = 16 // LOG_LOCAL0 - business operations
)

// Severity levels matching syslog (RFC5424)
type Severity int

const (
	SeverityEmergency Severity = iota // 0
	SeverityAlert                     // 1
	SeverityCritical                  // 2
	SeverityError                     // 3
	SeverityWarning                   // 4
	SeverityNotice                    // 5
	SeverityInfo                      // 6
	SeverityDebug                     // 7
)

// Event represents an audit event
type Event interface {
	MessageID() string
	Message() string
	Severity() Severity
	Facility() int
	StructuredData() map[string]map[string]string
}

// Sink receives every logged event in addition to the syslog writer and
// the database store
type Sink interface {
	Publish(event Event) error
}

// Logger handles audit logging in RFC5424 syslog format
type Logger struct {
	mu       sync.Mutex
	writer   io.Writer
	hostname string
	appName  string
	pid      int
	now      func() time.Time
}

// NewLogger creates a new audit logger
func NewLogger() *Logger {
	hostname, _ := os.Hostname()
	return &Logger{
		writer:   os.Stdout,
		hostname: hostname,
		appName:  AppName,
		pid:      os.Getpid(),
		now:      time.Now,
	}
}

// SetWriter sets the output writer for the logger
func (l *Logger) SetWriter(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = w
}

// Log writes an audit event in RFC5424 syslog format
// Format: <PRI>VERSION TIMESTAMP HOSTNAME APP-NAME PROCID MSGID SD MSG
func (l *Logger) Log(event Event) {
	pri := event.Facility()*8 + int(event.Severity())
	timestamp := l.now().UTC().Format("2006-01-02T15:04:05.000Z")

	sd := formatStructuredData(event.StructuredData())
	if sd == "" {
		sd = "-"
	}
	hostname := l.hostname
	if hostname == "" {
		hostname = "-"
	}

	logLine := fmt.Sprintf("<%d>1 %s %s %s %d %s %s %s\n",
		pri,
		timestamp,
		hostname,
		l.appName,
		l.pid,
		event.MessageID(),
		sd,
		event.Message(),
	)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.writer.Write([]byte(logLine))
}

// formatStructuredData formats the structured data according to RFC5424.
// SD elements and params are sorted so lines are stable.
// Format: [sdid param1="value1" param2="value2"][sdid2 ...]
func formatStructuredData(sd map[string]map[string]string) string {
	if len(sd) == 0 {
		return ""
	}

	ids := make([]string, 0, len(sd))
	for sdid := range sd {
		ids = append(ids, sdid)
	}
	sort.Strings(ids)

	var parts []string
	for _, sdid := range ids {
		params := sd[sdid]
		keys := make([]string, 0, len(params))
		for key := range params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		paramParts := []string{sdid}
		for _, key := range keys {
			paramParts = append(paramParts, fmt.Sprintf("%s=%s", key, escapeSDValue(params[key])))
		}
		parts = append(parts, "["+strings.Join(paramParts, " ")+"]")
	}
	return strings.Join(parts, "")
}

// escapeSDValue escapes special characters in structured data values per RFC5424
func escapeSDValue(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "]", "\\]")
	return "\"" + value + "\""
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func severity(success bool) Severity {
	if success {
		return SeverityInfo
	}
	return SeverityWarning
}

// Default logger instance
var DefaultLogger = NewLogger()

// Default store for database persistence (nil if AUDIT_DATABASE_URL not set)
var DefaultStore *Store

// Audit enabled state defaults to true and can be turned off with
// HASAD_AUDIT_ENABLED=false
var (
	auditEnabled     = true
	auditEnabledOnce sync.Once
	storeInitOnce    sync.Once

	sinksMu sync.RWMutex
	sinks   []Sink
)

// IsEnabled returns whether audit logging is enabled
func IsEnabled() bool {
	auditEnabledOnce.Do(func() {
		if env := os.Getenv("HASAD_AUDIT_ENABLED"); env != "" {
			auditEnabled = env != "false" && env != "0" && env != "no"
		}
	})
	return auditEnabled
}

// SetEnabled allows programmatic control of audit logging
// Note: This should be called before any Log calls for consistent behavior
func SetEnabled(enabled bool) {
	auditEnabledOnce.Do(func() {})
	auditEnabled = enabled
}

// AddSink registers an extra destination for events
func AddSink(s Sink) {
	sinksMu.Lock()
	defer sinksMu.Unlock()
	sinks = append(sinks, s)
}

// ResetSinks removes every registered sink
func ResetSinks() {
	sinksMu.Lock()
	defer sinksMu.Unlock()
	sinks = nil
}

// Log writes an event to the default logger, the store (if configured) and
// every sink, when audit is enabled
func Log(event Event) {
	if !IsEnabled() {
		return
	}
	DefaultLogger.Log(event)

	storeInitOnce.Do(func() {
		if DefaultStore != nil {
			return
		}
		var err error
		DefaultStore, err = NewStore()
		if err != nil {
			// The audit database is optional
			fmt.Fprintf(os.Stderr, "audit: failed to connect to audit database: %v\n", err)
		}
	})

	if DefaultStore != nil {
		if err := DefaultStore.Save(event); err != nil {
			fmt.Fprintf(os.Stderr, "audit: failed to save event: %v\n", err)
		}
	}

	sinksMu.RLock()
	defer sinksMu.RUnlock()
	for _, s := range sinks {
		if err := s.Publish(event); err != nil {
			fmt.Fprintf(os.Stderr, "audit: failed to publish event: %v\n", err)
		}
	}
}
