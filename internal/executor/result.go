package executor

// Machine-stable result codes. Human-facing context goes into log fields and
// notifications, never into Message.
const (
	MsgNoDecision       = "no_decision"
	MsgStateError       = "state_error"
	MsgRiskRejected     = "risk_rejected"
	MsgGlobalGuardBlock = "global_guard_block"
	MsgPlaced           = "placed"
	MsgSimFilled        = "sim_filled"
	MsgOrderError       = "order_error"
)

// ExecutionResult is the uniform contract every order router returns.
type ExecutionResult struct {
	Success bool
	Message string
	Symbol  string
}
