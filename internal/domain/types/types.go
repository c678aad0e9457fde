package types

// Enum for operator roles on the admin surface
type OperatorRole string

func (r OperatorRole) String() string {
	return string(r)
}

const (
	RoleAdmin    OperatorRole = "ADMIN"
	RoleViewer   OperatorRole = "VIEWER"
	RoleOperator OperatorRole = "OPERATOR"
)

func (r OperatorRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleViewer, RoleOperator:
		return true
	}
	return false
}

// Enum for surge event status
type EventStatus string

const (
	EventActive EventStatus = "ACTIVE"
	EventClosed EventStatus = "CLOSED"
)

// RuleManual is the ruleID recorded on operator-activated surge events.
const RuleManual = "MANUAL"

// TriggerSource tells what created a surge event.
type TriggerSource string

const (
	SourceRule   TriggerSource = "RULE"
	SourceManual TriggerSource = "MANUAL"
)
