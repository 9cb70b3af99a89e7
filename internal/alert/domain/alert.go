package domain

import "time"

// Rule sources. Each names a stream of records the engine can count.
const (
	SourceSecurityEvents  = "security_events"
	SourceDeviceConflicts = "device_conflicts"
	SourceOTPRequests     = "otp_requests"
)

type AlertStatus string

const (
	AlertStatusOpen     AlertStatus = "open"
	AlertStatusResolved AlertStatus = "resolved"
)

// AlertRule is a declarative threshold: "N or more records from
// SourceType within WindowMinutes, counted per GroupByField". EventType
// narrows security-event rules to one type; empty matches all.
type AlertRule struct {
	ID            string
	Name          string
	Description   string
	IsActive      bool
	Severity      string
	SourceType    string
	EventType     string
	WindowMinutes int
	Threshold     int
	GroupByField  string
	CreatedAt     time.Time
}

// SecurityAlert is one firing of a rule for one group key. At most one
// open alert exists per (rule, group key) pair.
type SecurityAlert struct {
	ID         string
	RuleID     string
	SourceType string
	Severity   string
	Message    string
	GroupKey   string
	Metadata   map[string]string
	Status     AlertStatus
	CreatedAt  time.Time
	ResolvedAt *time.Time
}
