package models

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrVerificationFailed  = errors.New("webhook verification failed")
	ErrMalformedPayload    = errors.New("malformed payload")
	ErrProvider            = errors.New("payment provider error")
	ErrPersistence         = errors.New("persistence error")
)
