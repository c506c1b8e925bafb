package io

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

func nilOnEOF(err error) (any, error) {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, nil
	}

	return nil, fmt.Errorf("(io-read) failed to read: %w", err)
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

func isNumberByte(b byte) bool {
	switch {
	case b >= '0' && b <= '9':
		return true
	case b >= 'a' && b <= 'f', b >= 'A' && b <= 'F':
		return true
	case b == '.' || b == '+' || b == '-' || b == 'x' || b == 'X' || b == 'p' || b == 'P':
		return true
	default:
		return false
	}
}

func parseNumber(s string) (float64, error) {
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return float64(n), nil
	}

	return strconv.ParseFloat(s, 64)
}
