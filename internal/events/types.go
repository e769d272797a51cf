package events

// Event enumerates high-level topics inside the execution core.
type Event string

const (
	EventExecutionPlaced Event = "execution.placed"
	EventExecutionError  Event = "execution.error"
	EventRiskBlocked     Event = "risk.blocked"
	EventPositionChange  Event = "position.change"
	EventOrderFill       Event = "order.fill"
	EventTradeClosed     Event = "trade.closed"
)

// ExecutionNote is the payload for placed/error/blocked notifications.
type ExecutionNote struct {
	Symbol  string
	Intent  string
	Message string
	Detail  string
}
