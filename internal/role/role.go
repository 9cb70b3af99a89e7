// Package role defines the closed set of platform roles and strict parsing
// from external strings.
package role

import "fmt"

// Role identifies one of the platform's account roles.
type Role string

const (
	Admin       Role = "admin"
	Manager     Role = "manager"
	Technician  Role = "technician"
	Transporter Role = "transporter"
	Customer    Role = "customer"
)

// All lists every valid role, in no particular order.
var All = []Role{Admin, Manager, Technician, Transporter, Customer}

// Parse converts an external role string into a Role. Unrecognized values are
// rejected; callers must not default them.
func Parse(s string) (Role, error) {
	switch Role(s) {
	case Admin, Manager, Technician, Transporter, Customer:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// String returns the role's wire representation.
func (r Role) String() string { return string(r) }

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, err := Parse(string(r))
	return err == nil
}
