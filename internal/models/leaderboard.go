// Package models defines data structures for Stockboard
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrMalformedRecord reports a portfolio record whose wire shape could not be
// validated. Callers skip the record and continue with the remainder.
var ErrMalformedRecord = errors.New("malformed portfolio record")

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

// Holding is a single position within a portfolio record.
type Holding struct {
	Symbol   string
	Quantity float64
	Note     string
}

// PortfolioRecord is one user's state at a point in time.
//
// The upstream feed stores records positionally: [total_value, link,
// [[symbol, quantity, note], ...]]. Holdings keep feed order; duplicate
// symbols are tolerated (diffs work on symbol sets, not counts).
type PortfolioRecord struct {
	TotalValue    float64
	ReferenceLink string
	Holdings      []Holding
}

// Symbols returns the set of held symbols.
func (r PortfolioRecord) Symbols() map[string]bool {
	set := make(map[string]bool, len(r.Holdings))
	for _, h := range r.Holdings {
		set[h.Symbol] = true
	}
	return set
}

// UnmarshalJSON decodes the feed's positional form, validating shape.
func (r *PortfolioRecord) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: not an array: %v", ErrMalformedRecord, err)
	}
	if len(fields) < 3 {
		return fmt.Errorf("%w: expected 3 elements, got %d", ErrMalformedRecord, len(fields))
	}

	var value flexFloat64
	if err := json.Unmarshal(fields[0], &value); err != nil {
		return fmt.Errorf("%w: total value: %v", ErrMalformedRecord, err)
	}

	var link string
	if err := json.Unmarshal(fields[1], &link); err != nil {
		return fmt.Errorf("%w: reference link: %v", ErrMalformedRecord, err)
	}

	var rawHoldings [][]json.RawMessage
	if err := json.Unmarshal(fields[2], &rawHoldings); err != nil {
		return fmt.Errorf("%w: holdings: %v", ErrMalformedRecord, err)
	}

	holdings := make([]Holding, 0, len(rawHoldings))
	for i, rh := range rawHoldings {
		if len(rh) < 2 {
			return fmt.Errorf("%w: holding %d has %d elements", ErrMalformedRecord, i, len(rh))
		}
		var h Holding
		if err := json.Unmarshal(rh[0], &h.Symbol); err != nil {
			return fmt.Errorf("%w: holding %d symbol: %v", ErrMalformedRecord, i, err)
		}
		var qty flexFloat64
		if err := json.Unmarshal(rh[1], &qty); err != nil {
			return fmt.Errorf("%w: holding %d quantity: %v", ErrMalformedRecord, i, err)
		}
		h.Quantity = float64(qty)
		if len(rh) > 2 {
			// Note is free text; ignore decode failures
			json.Unmarshal(rh[2], &h.Note)
		}
		holdings = append(holdings, h)
	}

	r.TotalValue = float64(value)
	r.ReferenceLink = link
	r.Holdings = holdings
	return nil
}

// MarshalJSON emits the feed's positional form so written references
// round-trip byte-compatible with upstream snapshots.
func (r PortfolioRecord) MarshalJSON() ([]byte, error) {
	holdings := make([][3]interface{}, len(r.Holdings))
	for i, h := range r.Holdings {
		holdings[i] = [3]interface{}{h.Symbol, h.Quantity, h.Note}
	}
	return json.Marshal([]interface{}{r.TotalValue, r.ReferenceLink, holdings})
}

// Snapshot maps usernames to portfolio records at a capture instant.
// Username order is the feed's JSON object order; ranking ties break on it,
// so decoding preserves it rather than using a Go map alone.
type Snapshot struct {
	CapturedAt time.Time
	// Skipped lists usernames whose records failed shape validation during
	// decoding. Callers log these; they are never fatal.
	Skipped []string

	usernames []string
	records   map[string]PortfolioRecord
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{records: make(map[string]PortfolioRecord)}
}

// Set adds or replaces a user's record, preserving first-insertion order.
func (s *Snapshot) Set(username string, record PortfolioRecord) {
	if s.records == nil {
		s.records = make(map[string]PortfolioRecord)
	}
	if _, exists := s.records[username]; !exists {
		s.usernames = append(s.usernames, username)
	}
	s.records[username] = record
}

// Get returns a user's record.
func (s *Snapshot) Get(username string) (PortfolioRecord, bool) {
	r, ok := s.records[username]
	return r, ok
}

// Usernames returns usernames in insertion order.
func (s *Snapshot) Usernames() []string {
	out := make([]string, len(s.usernames))
	copy(out, s.usernames)
	return out
}

// Len returns the number of users in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.usernames)
}

// UnmarshalJSON decodes {"username": [value, link, holdings], ...} preserving
// key order. Records that fail shape validation are skipped and reported via
// Skipped, not propagated.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	s.usernames = nil
	s.records = make(map[string]PortfolioRecord)
	s.Skipped = nil

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("snapshot decode: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("snapshot decode: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("snapshot decode: %w", err)
		}
		username, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("snapshot decode: non-string key %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("snapshot decode: value for %q: %w", username, err)
		}

		var record PortfolioRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			s.Skipped = append(s.Skipped, username)
			continue
		}
		s.Set(username, record)
	}

	// Consume closing brace
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("snapshot decode: %w", err)
	}

	return nil
}

// MarshalJSON encodes the snapshot in the feed's object form, preserving
// username order.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, username := range s.usernames {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(username)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(s.records[username])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RankedEntry is one row of a ranked leaderboard view. Derived, never persisted.
type RankedEntry struct {
	Username   string
	TotalValue float64
	Rank       int // 1-based
}

// ArchiveEntry pairs an archival snapshot with its capture timestamp.
type ArchiveEntry struct {
	Timestamp time.Time
	Snapshot  *Snapshot
}
