package domain

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrNotFound        = errors.New("not found")
	ErrAuditBinding    = errors.New("audit binding unavailable")
	ErrCategoryMissing = errors.New("budget category not found after upsert")
	ErrAlreadyApproved = errors.New("quotation already approved")
)
