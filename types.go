package labara

import (
	"time"

	"github.com/labara-io/labara-go/internal/domain"
)

// Attributes holds the subject attributes supplied for an evaluation.
// Values are boolean, number, string, array-of-strings or nil.
type Attributes map[string]any

// VariationType declares how a flag's values are interpreted.
type VariationType string

const (
	BooleanType VariationType = VariationType(domain.BooleanVariation)
	IntegerType VariationType = VariationType(domain.IntegerVariation)
	NumericType VariationType = VariationType(domain.NumericVariation)
	StringType  VariationType = VariationType(domain.StringVariation)
	JSONType    VariationType = VariationType(domain.JSONVariation)
)

// Evaluation codes surfaced on AssignmentDetails.
const (
	CodeMatch                      = string(domain.CodeMatch)
	CodeFlagUnrecognizedOrDisabled = string(domain.CodeFlagUnrecognizedOrDisabled)
	CodeDefaultAllocationNull      = string(domain.CodeDefaultAllocationNull)
	CodeAssignmentError            = string(domain.CodeAssignmentError)
)

// AllocationOutcome records why one allocation did or did not match.
// OrderPosition is 1-based in evaluation order.
type AllocationOutcome struct {
	Key           string
	Code          string
	OrderPosition int
}

// AssignmentDetails is the full diagnostic result of evaluating one flag
// for one subject. It is pure output and safe to share across goroutines.
type AssignmentDetails struct {
	FlagKey           string
	SubjectKey        string
	SubjectAttributes Attributes

	// VariationKey and Value are set only on a MATCH, with the value
	// coerced to the flag's declared type (bool, int64, float64, string).
	VariationKey  string
	Value         any
	VariationType VariationType
	AllocationKey string

	MatchedAllocation      *AllocationOutcome
	UnmatchedAllocations   []AllocationOutcome
	UnevaluatedAllocations []AllocationOutcome

	Code        string
	Description string

	DoLog        bool
	ExtraLogging map[string]string
	EntityID     *int64
}

// Matched reports whether a variation was assigned.
func (d *AssignmentDetails) Matched() bool {
	return d.Code == CodeMatch
}

// AssignmentEvent is handed to the assignment logger when a matched
// allocation requests exposure logging.
type AssignmentEvent struct {
	FlagKey           string
	AllocationKey     string
	VariationKey      string
	SubjectKey        string
	SubjectAttributes Attributes
	ExtraLogging      map[string]string
	EntityID          *int64
	Timestamp         time.Time
}

// AssignmentLogger receives exposure events for matched assignments with
// DoLog set. The transport (analytics pipeline, event queue) is the
// caller's concern.
type AssignmentLogger func(event AssignmentEvent)

// Internal conversion helpers

func toDetails(r domain.FlagEvaluation) *AssignmentDetails {
	d := &AssignmentDetails{
		FlagKey:           r.FlagKey,
		SubjectKey:        r.SubjectKey,
		SubjectAttributes: Attributes(r.SubjectAttributes),
		VariationType:     VariationType(r.VariationType),
		AllocationKey:     r.AllocationKey,
		Code:              string(r.Code),
		Description:       r.Description,
		DoLog:             r.DoLog,
		ExtraLogging:      r.ExtraLogging,
		EntityID:          r.EntityID,
	}

	if r.Variation != nil {
		d.VariationKey = r.Variation.Key
		d.Value = r.Variation.Value
	}
	if r.MatchedAllocation != nil {
		d.MatchedAllocation = toOutcome(*r.MatchedAllocation)
	}
	for _, a := range r.UnmatchedAllocations {
		d.UnmatchedAllocations = append(d.UnmatchedAllocations, *toOutcome(a))
	}
	for _, a := range r.UnevaluatedAllocations {
		d.UnevaluatedAllocations = append(d.UnevaluatedAllocations, *toOutcome(a))
	}

	return d
}

func toOutcome(a domain.AllocationEvaluation) *AllocationOutcome {
	return &AllocationOutcome{
		Key:           a.Key,
		Code:          string(a.Code),
		OrderPosition: a.OrderPosition,
	}
}
