package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadAddress    = errors.New("unrecognized wallet address format")
	ErrNoMarkets     = errors.New("no markets loaded")
	ErrScanFailed    = errors.New("all market queries failed")
	ErrBadThreshold  = errors.New("invalid threshold value")
	ErrContextDone   = errors.New("context cancelled")
)
