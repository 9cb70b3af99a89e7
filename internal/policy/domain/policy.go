package domain

import "time"

// LoginPolicy is an operator-provided Rego module layered over the
// built-in login policy. Rules holds the Rego source.
type LoginPolicy struct {
	ID        string
	Name      string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
