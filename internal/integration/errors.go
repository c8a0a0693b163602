package integration

import "github.com/coachpo/feedgate/internal/errs"

const component = "integration"

func errAlreadyRunning() error {
	return errs.New(component, errs.CodeConflict, errs.WithMessage("integration already running"))
}

func errNotRunning() error {
	return errs.New(component, errs.CodeInvalid, errs.WithMessage("integration not running"))
}

func errDestroyed() error {
	return errs.New(component, errs.CodeDestroyed, errs.WithMessage("integration destroyed"))
}
