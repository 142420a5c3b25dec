package contracts

import (
	"errors"
	"fmt"
	"time"
)

// TradeDateLayout is the 8-digit trade date format (YYYYMMDD)
const TradeDateLayout = "20060102"

// ErrInvalidTradeDate is returned when a trade date is not a valid YYYYMMDD string
var ErrInvalidTradeDate = errors.New("invalid trade date")

// ParseTradeDate parses a YYYYMMDD string into a UTC date
func ParseTradeDate(s string) (time.Time, error) {
	if len(s) != 8 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTradeDate, s)
	}
	t, err := time.Parse(TradeDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTradeDate, s)
	}
	return t, nil
}

// FormatTradeDate formats a date as YYYYMMDD
func FormatTradeDate(t time.Time) string {
	return t.Format(TradeDateLayout)
}
