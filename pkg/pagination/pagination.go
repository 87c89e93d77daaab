// Package pagination implements opaque keyset cursors. Cursors are
// URL-safe base64 so they can travel in a query string unescaped.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var (
	encoding = base64.RawURLEncoding

	errCursorFormat = errors.New("invalid cursor format")
)

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor orders rows by creation time, then id.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit clamps limit into [1, MaxLimit], using DefaultLimit for
// non-positive values.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer asks for one extra row so Split can tell whether another
// page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Split cuts rows fetched with LimitWithBuffer down to the page size and
// reports whether more rows follow.
func Split[T any](rows []T, limit int) ([]T, bool) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, false
	}
	return rows[:limit], true
}

func EncodeCursor(cursor Cursor) string {
	return encode(cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + cursor.ID.String())
}

// ParseCursor returns nil for an empty value, meaning the first page.
func ParseCursor(value string) (*Cursor, error) {
	raw, err := decode(value)
	if err != nil || raw == "" {
		return nil, err
	}
	stamp, id, ok := strings.Cut(raw, "|")
	if !ok {
		return nil, errCursorFormat
	}
	createdAt, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{CreatedAt: createdAt, ID: parsedID}, nil
}

const positionPrefix = "pos|"

// EncodePositionCursor builds a cursor for lists ordered by ledger position.
func EncodePositionCursor(position int64) string {
	return encode(positionPrefix + strconv.FormatInt(position, 10))
}

// ParsePositionCursor returns nil for an empty value, meaning the first
// page.
func ParsePositionCursor(value string) (*int64, error) {
	raw, err := decode(value)
	if err != nil || raw == "" {
		return nil, err
	}
	digits, ok := strings.CutPrefix(raw, positionPrefix)
	if !ok {
		return nil, errCursorFormat
	}
	position, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || position < 0 {
		return nil, fmt.Errorf("invalid cursor position")
	}
	return &position, nil
}

func encode(raw string) string {
	return encoding.EncodeToString([]byte(raw))
}

func decode(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	decoded, err := encoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("decode cursor: %w", err)
	}
	return string(decoded), nil
}
