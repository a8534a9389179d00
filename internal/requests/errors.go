package requests

import "errors"

var (
	ErrRequestNotFound = errors.New("request not found")
	ErrNoChanges       = errors.New("nothing to save")
	ErrNotAuthorized   = errors.New("not authorized")
	ErrInvalidAssignee = errors.New("assignee must be an active IAM user")
	ErrValidation      = errors.New("invalid request")
	ErrIDExhausted     = errors.New("could not allocate a unique request id")
)
