package provider

import "errors"

var (
	ErrInvalidCategory = errors.New("invalid service category")
	ErrInvalidWeight   = errors.New("provider weight must not be negative")
	ErrNotFound        = errors.New("provider not found")
)
