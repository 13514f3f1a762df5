// Package audit provides audit logging for Hasad operations.
//
// Security-relevant operations (logins, password and MFA changes, session
// lifecycle, account administration, memory access decisions and payment
// order transitions) are described by Event values and written as RFC5424
// syslog lines to stdout.
//
// # Destinations
//
//   - DefaultLogger: RFC5424 lines, stdout by default
//   - DefaultStore: the audit_messages table, when AUDIT_DATABASE_URL is set
//   - Sinks added with AddSink, such as KafkaSink
//
// # Usage
//
//	audit.Log(audit.AuthenticateEvent{
//	    Username: "salem",
//	    ClientIP: ip,
//	    Method:   "password",
//	    Success:  true,
//	})
//
// Set HASAD_AUDIT_ENABLED=false to turn audit logging off.
package audit
