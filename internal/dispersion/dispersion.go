package dispersion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is used when no limit, or a non-positive one, is configured.
	DefaultLimit = 1
	// DefaultShuffled is used when shuffled is absent.
	DefaultShuffled = false
)

// Dispersion is an immutable per-request selection policy.
type Dispersion struct {
	Limit    int  `json:"limit" yaml:"limit"`
	Shuffled bool `json:"shuffled" yaml:"shuffled"`
}

// Default returns {limit: 1, shuffled: false}.
func Default() Dispersion {
	return Dispersion{Limit: DefaultLimit, Shuffled: DefaultShuffled}
}

// EffectiveLimit returns the number of nodes a lookup should return.
func (d Dispersion) EffectiveLimit() int {
	if d.Limit > 0 {
		return d.Limit
	}
	return DefaultLimit
}

func (d Dispersion) String() string {
	return fmt.Sprintf("limit=%d shuffled=%t", d.EffectiveLimit(), d.Shuffled)
}

// MalformedError reports dispersion configuration that could not be parsed.
type MalformedError struct {
	Field string
	Err   error
}

func (e *MalformedError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed dispersion: %v", e.Err)
	}
	return fmt.Sprintf("malformed dispersion %s: %v", e.Field, e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

type rawDispersion struct {
	Limit    json.RawMessage `json:"limit"`
	Shuffled json.RawMessage `json:"shuffled"`
}

// Parse decodes a dispersion object. Both the wrapped form
// {"dispersion": {"limit": 2, "shuffled": "true"}} and the bare inner object
// are accepted. limit may be a number or a numeric string, shuffled a bool or
// a "true"/"false" string. Missing fields take their defaults; empty input
// yields Default().
func Parse(data []byte) (Dispersion, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Default(), nil
	}

	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return Default(), &MalformedError{Err: err}
	}
	if inner, ok := outer["dispersion"]; ok {
		data = inner
	}

	var raw rawDispersion
	if err := json.Unmarshal(data, &raw); err != nil {
		return Default(), &MalformedError{Err: err}
	}

	d := Default()
	if len(raw.Limit) > 0 {
		limit, err := parseLimit(raw.Limit)
		if err != nil {
			return Default(), &MalformedError{Field: "limit", Err: err}
		}
		d.Limit = limit
	}
	if len(raw.Shuffled) > 0 {
		shuffled, err := parseShuffled(raw.Shuffled)
		if err != nil {
			return Default(), &MalformedError{Field: "shuffled", Err: err}
		}
		d.Shuffled = shuffled
	}
	if d.Limit <= 0 {
		d.Limit = DefaultLimit
	}
	return d, nil
}

// ParseOrDefault is Parse for front ends that must not fail a request over a
// bad dispersion: on error it returns Default() together with the error so
// the caller can log it.
func ParseOrDefault(data []byte) (Dispersion, error) {
	d, err := Parse(data)
	if err != nil {
		return Default(), err
	}
	return d, nil
}

func parseLimit(raw json.RawMessage) (int, error) {
	if string(raw) == "null" {
		return DefaultLimit, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("expected integer, got %s", raw)
		}
		n = json.Number(strings.TrimSpace(s))
	}
	// Out-of-range values come back saturated, so a huge limit still means
	// the whole pool.
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("expected integer, got %q", n.String())
	}
	if v > int64(maxInt) {
		v = int64(maxInt)
	}
	if v < 0 {
		v = 0
	}
	return int(v), nil
}

func parseShuffled(raw json.RawMessage) (bool, error) {
	if string(raw) == "null" {
		return DefaultShuffled, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, fmt.Errorf("expected boolean, got %s", raw)
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("expected boolean, got %q", s)
	}
	return b, nil
}

const maxInt = int(^uint(0) >> 1)
