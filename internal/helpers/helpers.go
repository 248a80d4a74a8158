package helpers

import (
	"strings"

	"github.com/cyphera/cyphera-notify/internal/constants"
)

// Stage constants define the possible deployment/runtime environments.
const (
	StageProd  = constants.StageProd
	StageDev   = constants.StageDev
	StageLocal = constants.StageLocal
)

// IsValidStage checks if the provided stage string is one of the defined valid stages.
func IsValidStage(stage string) bool {
	switch stage {
	case StageProd, StageDev, StageLocal:
		return true
	default:
		return false
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// NormalizeEmail lowercases and trims an email-like identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
