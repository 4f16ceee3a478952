// Package snapshot reads price-list snapshots and keeps copies of them in S3.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ManuelReschke/PriceSync/app/models"
)

// MaxSize bounds a snapshot payload.
const MaxSize = 8 << 20

var (
	// ErrInvalid wraps every payload that cannot be read as a snapshot.
	ErrInvalid = errors.New("invalid snapshot")
	ErrEmpty   = fmt.Errorf("%w: payload is empty", ErrInvalid)
)

type envelope struct {
	Rows []models.PriceListRow `json:"rows"`
}

// Decode accepts either a bare JSON array of rows or an object with a
// "rows" array.
func Decode(r io.Reader) ([]models.PriceListRow, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(raw) > MaxSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrInvalid, MaxSize)
	}
	return DecodeBytes(raw)
}

func DecodeBytes(raw []byte) ([]models.PriceListRow, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrEmpty
	}

	switch trimmed[0] {
	case '[':
		var rows []models.PriceListRow
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return rows, nil
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if env.Rows == nil {
			return nil, fmt.Errorf("%w: missing \"rows\" array", ErrInvalid)
		}
		return env.Rows, nil
	default:
		return nil, fmt.Errorf("%w: expected a JSON array or object", ErrInvalid)
	}
}

// Encode writes rows in the envelope form.
func Encode(rows []models.PriceListRow) ([]byte, error) {
	if rows == nil {
		rows = []models.PriceListRow{}
	}
	return json.MarshalIndent(envelope{Rows: rows}, "", "  ")
}
