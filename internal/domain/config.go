package domain

import (
	"time"
)

// VariationType declares how a flag's variation values are interpreted.
type VariationType string

const (
	BooleanVariation VariationType = "BOOLEAN"
	IntegerVariation VariationType = "INTEGER"
	NumericVariation VariationType = "NUMERIC"
	StringVariation  VariationType = "STRING"
	JSONVariation    VariationType = "JSON"
)

// Operator is a targeting condition operator. In obfuscated configurations
// the wire carries the MD5 hex digest of these tokens instead of the token
// itself; see the obfuscation package.
type Operator string

const (
	OperatorLessThan         Operator = "LT"
	OperatorLessThanEqual    Operator = "LTE"
	OperatorGreaterThan      Operator = "GT"
	OperatorGreaterThanEqual Operator = "GTE"
	OperatorMatches          Operator = "MATCHES"
	OperatorNotMatches       Operator = "NOT_MATCHES"
	OperatorOneOf            Operator = "ONE_OF"
	OperatorNotOneOf         Operator = "NOT_ONE_OF"
	OperatorIsNull           Operator = "IS_NULL"
)

// Operators lists every supported operator token.
func Operators() []Operator {
	return []Operator{
		OperatorLessThan,
		OperatorLessThanEqual,
		OperatorGreaterThan,
		OperatorGreaterThanEqual,
		OperatorMatches,
		OperatorNotMatches,
		OperatorOneOf,
		OperatorNotOneOf,
		OperatorIsNull,
	}
}

// Configuration is one immutable snapshot of every flag served to this
// client. It is replaced wholesale on refresh, never mutated in place.
type Configuration struct {
	CreatedAt  time.Time
	Obfuscated bool
	Flags      map[string]Flag
}

// Flag is a single feature flag or experiment definition.
type Flag struct {
	Key           string
	Enabled       bool
	VariationType VariationType
	Variations    map[string]Variation
	// Allocations are evaluated in order; the first match wins.
	Allocations []Allocation
	TotalShards int
	// EntityID correlates the flag with an external metadata record.
	EntityID *int64
}

// Variation is the typed value a subject receives on a match. For JSON
// flags Value holds the serialized JSON document as a string.
type Variation struct {
	Key   string
	Value any
}

// Allocation is a named, ordered, time-bounded targeting bucket.
type Allocation struct {
	Key string
	// Rules gate the allocation; an allocation with no rules has no
	// targeting gate. The allocation matches if ANY rule matches.
	Rules   []Rule
	StartAt *time.Time
	EndAt   *time.Time
	Splits  []Split
	// DoLog marks whether a match should be reported to exposure logging.
	DoLog bool
}

// Rule matches iff every condition matches. Zero conditions match
// vacuously.
type Rule struct {
	Conditions []Condition
}

// Condition is one targeting check against a subject attribute. Value is
// typed per operator: number/string for ordered comparisons, string for
// regex operators, array of strings for membership operators, boolean for
// IS_NULL.
type Condition struct {
	Attribute string
	Operator  Operator
	Value     any
}

// Split maps a slice of traffic within an allocation to one variation.
// ALL shards must match for the split to match.
type Split struct {
	VariationKey string
	Shards       []Shard
	// ExtraLogging is echoed back on a match, for exposure logging.
	ExtraLogging map[string]string
}

// Shard is a hashed-bucket check. It matches when the subject's bucket
// falls in ANY of its ranges.
type Shard struct {
	Salt   string
	Ranges []ShardRange
}

// ShardRange is a half-open integer interval [Start, End).
type ShardRange struct {
	Start int
	End   int
}

// Contains reports whether bucket falls inside the range.
func (r ShardRange) Contains(bucket int) bool {
	return bucket >= r.Start && bucket < r.End
}

// SubjectAttributes are the caller-supplied attributes of the subject
// being evaluated. Values are boolean, number, string, array-of-strings or
// nil. The map is treated as immutable for the duration of a call.
type SubjectAttributes map[string]any
