package domain

import "errors"

var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrFileNotFound     = errors.New("file not found")
	ErrFileExists       = errors.New("file already exists")
	ErrInvalidName      = errors.New("invalid name")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNoGeneratedFiles = errors.New("message has no generated files")
	ErrFeatureLocked    = errors.New("feature not included in plan")
)
