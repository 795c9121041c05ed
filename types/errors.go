package types

import "errors"

var (
	ErrInvalidRoute          = errors.New("invalid route")
	ErrAggregatorUnavailable = errors.New("aggregator unavailable")
	ErrEmptyInstructionSet   = errors.New("empty instruction set")
	ErrSubmitFailed          = errors.New("bundle submit failed")
	ErrPollTimeout           = errors.New("bundle poll timeout, outcome unknown")
	ErrRelayRejected         = errors.New("relay rejected bundle")
	ErrConfigOutOfBounds     = errors.New("config out of bounds")
	ErrSimulationFailed      = errors.New("bundle simulation failed")
	ErrOpportunityNotFound   = errors.New("opportunity not found")
	ErrNotCostEffective      = errors.New("tip not cost effective")
	ErrExecutionInFlight     = errors.New("execution already in flight")
	ErrInsufficientBalance   = errors.New("payer balance below tip and fees")
	ErrTransactionTooLarge   = errors.New("transaction exceeds packet size")
)

var reasons = []struct {
	err  error
	code string
}{
	{ErrInvalidRoute, "INVALID_ROUTE"},
	{ErrAggregatorUnavailable, "AGGREGATOR_UNAVAILABLE"},
	{ErrEmptyInstructionSet, "EMPTY_INSTRUCTION_SET"},
	{ErrSubmitFailed, "SUBMIT_FAILED"},
	{ErrPollTimeout, "POLL_TIMEOUT"},
	{ErrRelayRejected, "RELAY_REJECTED"},
	{ErrConfigOutOfBounds, "CONFIG_OUT_OF_BOUNDS"},
	{ErrSimulationFailed, "SIMULATION_FAILED"},
	{ErrOpportunityNotFound, "OPPORTUNITY_NOT_FOUND"},
	{ErrNotCostEffective, "NOT_COST_EFFECTIVE"},
	{ErrExecutionInFlight, "EXECUTION_IN_FLIGHT"},
	{ErrInsufficientBalance, "INSUFFICIENT_BALANCE"},
	{ErrTransactionTooLarge, "TRANSACTION_TOO_LARGE"},
}

// Reason maps an error to a stable reason code. Nil maps to "".
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return "INTERNAL"
}
