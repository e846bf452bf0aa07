package log

// Field names shared across packages so log queries stay stable.
const (
	FieldService  = "service"
	FieldInstance = "instance"

	FieldRequestID = "request_id"
	FieldRoute     = "route"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldRemote    = "remote"

	FieldSessionID  = "session_id"
	FieldAccount    = "account"
	FieldGeneration = "generation"
	FieldState      = "state"
	FieldFrameType  = "frame_type"

	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
