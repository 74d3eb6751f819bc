package rest

import (
	"time"

	"github.com/shopspring/decimal"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Money fields arrive as JSON strings ("150.00") or numbers; both parse into
// a decimal. Floats are parsed from their text form, so "0.1" stays 0.1.
func toDecimal(v interface{}, field string) (decimal.Decimal, error) {
	switch t := v.(type) {
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Zero, &ValidationError{Field: field, Message: field + " must be a decimal amount"}
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	default:
		return decimal.Zero, &ValidationError{Field: field, Message: field + " must be a decimal amount"}
	}
}

func toDecimalPtr(v interface{}, field string) (*decimal.Decimal, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && s == "" {
		return nil, nil
	}
	d, err := toDecimal(v, field)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func toDate(v interface{}, field string) (time.Time, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, &ValidationError{Field: field, Message: field + " must be YYYY-MM-DD"}
	}
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Message: field + " must be YYYY-MM-DD"}
	}
	return parsed, nil
}

func toDatePtr(v interface{}, field string) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && s == "" {
		return nil, nil
	}
	parsed, err := toDate(v, field)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func toStringPtr(v interface{}, field string) (*string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		return &t, nil
	default:
		return nil, &ValidationError{Field: field, Message: field + " must be a string or empty"}
	}
}
