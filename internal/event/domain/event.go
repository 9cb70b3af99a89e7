// Package domain defines security events: typed, immutable, append-only
// occurrences relevant to account security.
package domain

import "time"

// Severity classifies a security event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event types emitted by the anomaly detector and MFA lifecycle. The set is
// open-ended: new producers may add types without a schema change.
const (
	TypeAnomalyNewIP        = "ANOMALY_NEW_IP"
	TypeAnomalyNewDevice    = "ANOMALY_NEW_DEVICE"
	TypeAnomalyOddHourLogin = "ANOMALY_ODD_HOUR_LOGIN"
	TypeMFASetupCompleted   = "MFA_SETUP_COMPLETED"
	TypeMFAChallengePassed  = "MFA_CHALLENGE_PASSED"
	TypeMFAChallengeFailed  = "MFA_CHALLENGE_FAILED"
	TypeLoginFailed         = "LOGIN_FAILED"
)

// Event is one security occurrence for an actor. Rows are append-only.
type Event struct {
	ID          string
	ActorUserID string
	EventType   string
	Severity    Severity
	IPAddress   string
	UserAgent   string
	Metadata    map[string]string
	CreatedAt   time.Time
}
