package domain

import "errors"

var (
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidPrice    = errors.New("invalid price")
	ErrInvalidTaxRate  = errors.New("invalid tax rate")
	ErrInvalidNumber   = errors.New("invalid quote number")
	ErrEmptyQuote      = errors.New("quote has no line items")
	ErrCounterOverflow = errors.New("quote counter overflow")
)
