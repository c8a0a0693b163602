package publisher

import "github.com/coachpo/feedgate/internal/errs"

const component = "publisher"

func errTopicRequired() error {
	return errs.New(component, errs.CodeInvalid, errs.WithMessage("topic required"))
}

func errClosed() error {
	return errs.New(component, errs.CodeDestroyed, errs.WithMessage("publisher closed"))
}
