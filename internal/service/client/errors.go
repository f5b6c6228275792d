package client

import "errors"

var (
	ErrNotFound       = errors.New("client not found")
	ErrDuplicateEmail = errors.New("a client with this email already exists")
)
