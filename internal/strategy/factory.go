package strategy

import "fmt"

// New builds a strategy by name with its default parameters.
func New(name string) (Strategy, error) {
	switch name {
	case "ma_cross":
		return NewMACross(10, 30, 0.01), nil
	case "rsi":
		return NewRSIReversion(14, 30, 70, 0.01), nil
	case "bollinger":
		return NewBollinger(20, 2.0, 0.01), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}
