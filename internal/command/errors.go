package command

import "errors"

var (
	ErrEmptyCommand  = errors.New("command is empty")
	ErrToolNotFound  = errors.New("required tool not found")
	ErrCommandFailed = errors.New("command failed")
)
