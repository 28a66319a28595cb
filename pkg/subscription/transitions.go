package subscription

type transition struct {
	from, to Status
}

// allowedTransitions lists status moves driven by billing signals.
// CANCELLED is terminal.
var allowedTransitions = map[transition]bool{
	{StatusTrialActive, StatusActivePaid}: true,
	{StatusTrialActive, StatusPastDue}:    true,
	{StatusTrialActive, StatusRestricted}: true,
	{StatusTrialActive, StatusCancelled}:  true,

	{StatusActivePaid, StatusPastDue}:   true,
	{StatusActivePaid, StatusCancelled}: true,

	{StatusPastDue, StatusActivePaid}: true,
	{StatusPastDue, StatusGrace}:      true,
	{StatusPastDue, StatusRestricted}: true,
	{StatusPastDue, StatusCancelled}:  true,

	{StatusGrace, StatusActivePaid}: true,
	{StatusGrace, StatusRestricted}: true,
	{StatusGrace, StatusCancelled}:  true,

	{StatusRestricted, StatusActivePaid}: true,
	{StatusRestricted, StatusCancelled}:  true,
}

// CanTransition reports whether a subscription may move from one status to another.
func CanTransition(from, to Status) bool {
	return allowedTransitions[transition{from, to}]
}
