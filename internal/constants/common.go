package constants

// Common string constants used throughout the codebase
const (
	ServiceName = "cyphera-notify"

	// Environments
	StageProd  = "prod"
	StageDev   = "dev"
	StageLocal = "local"

	// Email providers
	EmailProviderResend = "resend"
	EmailProviderSMTP   = "smtp"

	// Pacing policies
	PacingStagger     = "stagger"
	PacingTokenBucket = "token_bucket"
)
