package actuator

import "errors"

// Domain errors for the actuator package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, actuator.ErrInvalidChannel) {
//	    // handle unknown relay id
//	}
var (
	// ErrInvalidChannel is returned when a relay channel id is not configured.
	ErrInvalidChannel = errors.New("actuator: invalid relay channel")

	// ErrSetupFailed is returned when the pin driver fails to initialise.
	// This is fatal: the bank never reaches a usable state.
	ErrSetupFailed = errors.New("actuator: pin setup failed")

	// ErrBankClosed is returned when operating on a bank after ShutdownAll.
	ErrBankClosed = errors.New("actuator: bank already shut down")
)
