package types

// Decision is the outcome of one trigger evaluation for a zone.
type Decision string

const (
	NoAction       Decision = "NO_ACTION"
	ShouldTrigger  Decision = "SHOULD_TRIGGER"
	ShouldEscalate Decision = "SHOULD_ESCALATE"
	ShouldHold     Decision = "SHOULD_HOLD"
	ShouldRelease  Decision = "SHOULD_RELEASE"
)

func (d Decision) String() string {
	return string(d)
}
