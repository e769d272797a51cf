package executor

import "fmt"

// Mode selects which execution target an environment is bound to.
type Mode string

const (
	ModeBacktest Mode = "backtest"
	ModeDryRun   Mode = "dryrun"
	ModeTestnet  Mode = "testnet"
	ModeLive     Mode = "live"
)

// Simulated reports whether trade economics are synthesized locally.
func (m Mode) Simulated() bool {
	return m == ModeBacktest || m == ModeDryRun
}

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeBacktest, ModeDryRun, ModeTestnet, ModeLive:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}
