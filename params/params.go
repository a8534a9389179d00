package params

import "time"

const (
	ServerBodyLimit    = 1048576 // 1 MiB
	ServerIdleTimeout  = 30 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second

	RequestIDPrefix     = "REQ-"           // request ids look like REQ-000042
	RequestIDDigits     = 6                // zero-padded numeric part
	RequestIDMaxRetries = 5                // attempts before giving up on a unique id
	SLADays             = 7                // open requests older than this are over SLA
	MinPasswordLength   = 8                // minimum password length for new accounts
	MaxFailedLogins     = 5                // failed attempts before lockout
	LoginLockoutTime    = 5 * time.Minute  // lockout duration after too many failures
	AuditExportLimit    = 10000            // cap on audit rows included in a data export
	NotifyChannel       = "iamportal:sync" // redis pub/sub channel for data-changed broadcasts
	StreamSendBuffer    = 16               // per-client SSE send buffer before the client is dropped
	HealthCheckAddr     = ":3001"          // health check server address
	ExportVersion       = "2.0"            // data export format version
)
