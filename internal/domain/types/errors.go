package types

import "errors"

var (
	ErrZoneNotFound       = errors.New("zone not found")
	ErrZoneInactive       = errors.New("zone is inactive")
	ErrZoneHasActiveEvent = errors.New("zone has an active surge event")
	ErrZoneAlreadyExists  = errors.New("zone already exists")

	ErrRuleNotFound = errors.New("surge rule not found")

	ErrEventNotFound = errors.New("surge event not found")

	ErrCapExceeded          = errors.New("multiplier exceeds emergency override cap")
	ErrUnauthorizedOverride = errors.New("operator is not authorized for emergency override")
	ErrOverrideDisabled     = errors.New("emergency override is disabled")

	ErrStaleSnapshot    = errors.New("telemetry snapshot is stale")
	ErrNoSnapshot       = errors.New("no telemetry snapshot for zone")
	ErrGloballyDisabled = errors.New("dynamic pricing is globally disabled")

	ErrNotFound = errors.New("requested item not found")
)
