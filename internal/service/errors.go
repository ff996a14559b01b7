package service

import "errors"

var (
	ErrForbidden          = errors.New("not allowed to modify this resource")
	ErrAdminRequired      = errors.New("admin access required")
	ErrInvalidDescription = errors.New("description must not be empty")
	ErrNotFound           = errors.New("resource not found")
)
