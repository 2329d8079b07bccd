package model

import "errors"

var (
	ErrUnsupportedDepartment = errors.New("unsupported department")
	ErrTicketNotFound        = errors.New("ticket not found")
	ErrUnauthorized          = errors.New("not authorized")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrNoDraft               = errors.New("no pending draft")
	ErrPublishFailure        = errors.New("failed to publish ticket card")
	ErrRenderSync            = errors.New("status saved but card not refreshed")
)
