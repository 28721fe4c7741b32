package rental

import (
	"errors"

	"lepton-rental/internal/auction"
	"lepton-rental/internal/dispatch"
	"lepton-rental/internal/escrow"
	"lepton-rental/internal/leaseterm"
	"lepton-rental/internal/roles"
	"lepton-rental/internal/usefulness"
)

var (
	ErrUnauthorized      = roles.ErrUnauthorized
	ErrInvalidTransition = roles.ErrInvalidTransition
	ErrChainMismatch     = usefulness.ErrChainMismatch
	ErrDuplicate         = usefulness.ErrDuplicate
	ErrInvalidRecord     = usefulness.ErrInvalidRecord
	ErrTotalOverflow     = usefulness.ErrTotalOverflow
	ErrPriceTooLow       = auction.ErrPriceTooLow
	ErrInvalidBid        = auction.ErrInvalidBid
	ErrInsufficientFunds = escrow.ErrInsufficientFunds
	ErrUnknownAccount    = escrow.ErrUnknownAccount
	ErrBeneficiaryTaken  = escrow.ErrBeneficiaryTaken
	ErrOverflow          = leaseterm.ErrOverflow
	ErrUnknownModule     = dispatch.ErrUnknownModule
	ErrNoImplementation  = dispatch.ErrNoActive

	ErrWalletNotConfigured = errors.New("wallet_not_configured")
	ErrPaused              = errors.New("paused")
	ErrInvalidRequest      = errors.New("invalid_request")
	ErrInvalidParams       = errors.New("invalid_params")
)
