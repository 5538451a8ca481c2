// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package engine

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"strings"
	"time"
)

// key type ranks; lower ranks sort first.
const (
	rankNumber = iota
	rankDate
	rankString
	rankBinary
	rankArray
)

// Compare orders two keys. Numbers sort before dates, dates before strings,
// strings before binary keys and binary keys before arrays. Arrays ([]any)
// compare element by element, a shorter prefix sorting first. Strings
// compare by their UTF-8 bytes.
//
// Compare returns ErrData if either value is not a valid key.
func Compare(a, b any) (int, error) {
	ra, err := rank(a)
	if err != nil {
		return 0, err
	}
	rb, err := rank(b)
	if err != nil {
		return 0, err
	}
	if ra != rb {
		return cmp.Compare(ra, rb), nil
	}

	switch ra {
	case rankNumber:
		return cmp.Compare(number(a), number(b)), nil
	case rankDate:
		return a.(time.Time).Compare(b.(time.Time)), nil
	case rankString:
		return strings.Compare(a.(string), b.(string)), nil
	case rankBinary:
		return bytes.Compare(a.([]byte), b.([]byte)), nil
	}

	xs, ys := a.([]any), b.([]any)
	for i := 0; i < len(xs) && i < len(ys); i++ {
		c, err := Compare(xs[i], ys[i])
		if err != nil || c != 0 {
			return c, err
		}
	}
	return cmp.Compare(len(xs), len(ys)), nil
}

func rank(v any) (int, error) {
	switch k := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return rankNumber, nil
	case float32:
		if math.IsNaN(float64(k)) {
			return 0, fmt.Errorf("NaN is not a valid key: %w", ErrData)
		}
		return rankNumber, nil
	case float64:
		if math.IsNaN(k) {
			return 0, fmt.Errorf("NaN is not a valid key: %w", ErrData)
		}
		return rankNumber, nil
	case time.Time:
		return rankDate, nil
	case string:
		return rankString, nil
	case []byte:
		return rankBinary, nil
	case []any:
		for _, e := range k {
			if _, err := rank(e); err != nil {
				return 0, err
			}
		}
		return rankArray, nil
	}
	return 0, fmt.Errorf("%T is not a valid key: %w", v, ErrData)
}

func number(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	}
	return v.(float64)
}
