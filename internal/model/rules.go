package model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Rules is an immutable parameter set for one criterion: concrete values
// for the criterion's declared fields plus the minimum passing threshold.
// Records are deduplicated by content hash — creating rules with identical
// (criterion, fields, threshold) returns the existing record. Mutation is
// performed by creating a new record and re-pointing the binding.
type Rules struct {
	ID            uuid.UUID  `json:"id"`
	CriterionName string     `json:"criterion_name"`
	Threshold     float64    `json:"threshold"`
	Fields        RuleFields `json:"fields"`
	CreatedAt     time.Time  `json:"created_at"`
}

// RuleFields holds the criterion-specific parameter values. Values are
// restricted to what survives a JSON round trip: bool, float64, string,
// and []string. Typed accessors below normalize the lossy decodings.
type RuleFields map[string]any

// Int returns the named field as an int. JSON decoding produces float64
// for all numbers, so both forms are accepted.
func (f RuleFields) Int(name string) (int, bool) {
	switch v := f[name].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Float returns the named field as a float64.
func (f RuleFields) Float(name string) (float64, bool) {
	switch v := f[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// String returns the named field as a string.
func (f RuleFields) String(name string) (string, bool) {
	v, ok := f[name].(string)
	return v, ok
}

// Strings returns the named field as a string slice. JSON decoding
// produces []any, so both forms are accepted. Order is preserved.
func (f RuleFields) Strings(name string) ([]string, bool) {
	switch v := f[name].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// ContentHash produces a versioned SHA-256 hex digest over the canonical
// rules fields. Field keys are sorted and list values are sorted before
// hashing, so two records that differ only in list order hash identically
// (lists are order-independent sets for equality, order-preserving for
// storage). Every element is length-prefixed to prevent ambiguity between
// adjacent values.
func (r Rules) ContentHash() string {
	h := sha256.New()
	writeLengthPrefixed(h, []byte(r.CriterionName))
	writeLengthPrefixed(h, []byte(strconv.FormatFloat(r.Threshold, 'f', 10, 64)))

	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		writeLengthPrefixed(h, []byte(k))
		writeLengthPrefixed(h, []byte(canonicalFieldValue(r.Fields[k])))
	}
	return "v1:" + hex.EncodeToString(h.Sum(nil))
}

func canonicalFieldValue(v any) string {
	switch val := v.(type) {
	case string:
		return "s:" + val
	case bool:
		return "b:" + strconv.FormatBool(val)
	case int:
		return "n:" + strconv.FormatFloat(float64(val), 'f', 10, 64)
	case int64:
		return "n:" + strconv.FormatFloat(float64(val), 'f', 10, 64)
	case float64:
		return "n:" + strconv.FormatFloat(val, 'f', 10, 64)
	case []string:
		sorted := append([]string(nil), val...)
		sort.Strings(sorted)
		out := "l:"
		for _, s := range sorted {
			out += strconv.Itoa(len(s)) + ":" + s
		}
		return out
	case []any:
		strs := make([]string, 0, len(val))
		for _, item := range val {
			strs = append(strs, fmt.Sprint(item))
		}
		return canonicalFieldValue(strs)
	default:
		return "x:" + fmt.Sprint(val)
	}
}

func writeLengthPrefixed(h interface{ Write([]byte) (int, error) }, b []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(b)))
	_, _ = h.Write(length[:])
	_, _ = h.Write(b)
}
