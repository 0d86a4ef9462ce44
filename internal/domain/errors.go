package domain

import "errors"

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoContent        = errors.New("no content loaded")
)
