package constants

import "time"

// Bulk notification policy defaults
const (
	MaxBatchSize         = 50
	DefaultStagger       = 100 * time.Millisecond
	DefaultCategory      = "admin-bulk"
	MessagePreviewLength = 100
)

// Caller facing error messages
const (
	MsgEmptyRecipients    = "Recipients array is required and must not be empty"
	MsgMissingContent     = "Subject and body are required"
	MsgMissingCredential  = "Unauthorized: missing bearer token"
	MsgInvalidCredential  = "Unauthorized: invalid token"
	MsgForbidden          = "Forbidden: admin access required"
	MsgInvalidRequestBody = "Invalid request body"
	MsgInternalError      = "Internal server error"
)
