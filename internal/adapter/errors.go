package adapter

import "github.com/coachpo/feedgate/internal/errs"

const component = "adapter"

func errNotInitialized() error {
	return errs.New(component, errs.CodeInvalid, errs.WithMessage("adapter not initialized"))
}

func errDestroyed() error {
	return errs.New(component, errs.CodeDestroyed, errs.WithMessage("adapter destroyed"))
}
