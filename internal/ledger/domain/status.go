package domain

import "github.com/railzwaylabs/paycore/internal/gateway"

func IsTerminal(status string) bool {
	switch status {
	case gateway.StatusProcessed, gateway.StatusFailed, gateway.StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a recorded status may move to next. Failed
// and cancelled transfers are final; a processed transfer can still be
// returned by the bank and fail.
func CanTransition(from, next string) bool {
	if from == next || next == "" {
		return false
	}
	switch from {
	case gateway.StatusFailed, gateway.StatusCancelled:
		return false
	case gateway.StatusProcessed:
		return next == gateway.StatusFailed
	}
	return true
}
