package decision

// Intent enumerates what a strategy wants done for a symbol.
type Intent string

const (
	IntentNone      Intent = "NONE"
	IntentOpenLong  Intent = "OPEN_LONG"
	IntentOpenShort Intent = "OPEN_SHORT"
	IntentClose     Intent = "CLOSE"
)

// Reason tags appended by the risk gate. These are machine-stable codes;
// human-readable context goes into Decision.Reason free text.
const (
	TagRiskChecked             = "risk_checked"
	TagAlreadyHavePosition     = "already_have_position"
	TagInvalidPrice            = "invalid_price"
	TagExchangeHasOpenPosition = "exchange_has_open_position"
)

// Decision is a strategy's requested action for one symbol. The pipeline
// fills fields progressively: the risk gate appends tags to Reason, the
// sizer writes Quantity and Notional. A NONE intent is always a safe
// terminal no-op.
type Decision struct {
	Intent          Intent
	Symbol          string
	Quantity        float64
	EntryPrice      float64
	LastPrice       float64
	StopLossPrice   float64
	TakeProfitPrice float64
	Notional        float64
	Reason          string
	StrategyTag     string
}

// None returns a terminal no-op decision for symbol.
func None(symbol, reason string) Decision {
	return Decision{Intent: IntentNone, Symbol: symbol, Reason: reason}
}

// IsOpen reports whether the decision asks to open a new position.
func (d Decision) IsOpen() bool {
	return d.Intent == IntentOpenLong || d.Intent == IntentOpenShort
}

// IsClose reports whether the decision asks to close an existing position.
func (d Decision) IsClose() bool {
	return d.Intent == IntentClose
}

// ResolvedPrice returns the price an open intent should be evaluated at:
// the explicit entry price when present, otherwise the last traded price.
func (d Decision) ResolvedPrice() float64 {
	if d.EntryPrice > 0 {
		return d.EntryPrice
	}
	return d.LastPrice
}

// Tag appends a machine-stable tag to the free-text reason.
func (d *Decision) Tag(tag string) {
	if d.Reason == "" {
		d.Reason = tag
		return
	}
	d.Reason = d.Reason + "|" + tag
}
