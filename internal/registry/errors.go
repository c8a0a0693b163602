package registry

import "github.com/coachpo/feedgate/internal/errs"

const component = "registry"

func errNotFound(name string) error {
	return errs.New(component, errs.CodeNotFound, errs.WithMessage("adapter not registered: "+name))
}

func errAlreadyRegistered(name string) error {
	return errs.New(component, errs.CodeConflict, errs.WithMessage("adapter already registered with a different factory: "+name))
}

func errInstanceExists(name string) error {
	return errs.New(component, errs.CodeConflict, errs.WithMessage("instance already exists: "+name))
}

func errInstanceNotFound(name string) error {
	return errs.New(component, errs.CodeNotFound, errs.WithMessage("instance not found: "+name))
}

func errAlreadyRunning(name string) error {
	return errs.New(component, errs.CodeConflict, errs.WithMessage("instance already running: "+name))
}

func errNotRunning(name string) error {
	return errs.New(component, errs.CodeInvalid, errs.WithMessage("instance not running: "+name))
}

func errInvalidConfig(name string, cause error) error {
	return errs.New(component, errs.CodeInvalid, errs.WithMessage("invalid config for "+name), errs.WithCause(cause))
}

func errInvalidRegistration() error {
	return errs.New(component, errs.CodeInvalid, errs.WithMessage("adapter name and factory required"))
}
