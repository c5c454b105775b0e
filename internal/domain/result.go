package domain

// EvaluationCode is the flag-level outcome of an evaluation.
type EvaluationCode string

const (
	// CodeMatch means a variation was assigned.
	CodeMatch EvaluationCode = "MATCH"

	// CodeFlagUnrecognizedOrDisabled means the flag is unknown, disabled
	// or has no allocations.
	CodeFlagUnrecognizedOrDisabled EvaluationCode = "FLAG_UNRECOGNIZED_OR_DISABLED"

	// CodeDefaultAllocationNull means every allocation was walked and
	// none matched.
	CodeDefaultAllocationNull EvaluationCode = "DEFAULT_ALLOCATION_NULL"

	// CodeAssignmentError means an allocation matched but the configured
	// variation value is incompatible with the flag's declared type.
	CodeAssignmentError EvaluationCode = "ASSIGNMENT_ERROR"
)

// AllocationCode explains why a single allocation did or did not match.
type AllocationCode string

const (
	AllocationMatch               AllocationCode = "MATCH"
	AllocationBeforeStartTime     AllocationCode = "BEFORE_START_TIME"
	AllocationAfterEndTime        AllocationCode = "AFTER_END_TIME"
	AllocationFailingRule         AllocationCode = "FAILING_RULE"
	AllocationTrafficExposureMiss AllocationCode = "TRAFFIC_EXPOSURE_MISS"
	AllocationUnevaluated         AllocationCode = "UNEVALUATED"
)

// AllocationEvaluation records the outcome of one allocation during the
// ordered walk. OrderPosition is 1-based.
type AllocationEvaluation struct {
	Key           string
	Code          AllocationCode
	OrderPosition int
}

// FlagEvaluation is the full diagnostic result of evaluating one flag for
// one subject. It is pure output: it owns no shared state and is safe to
// pass across goroutines.
type FlagEvaluation struct {
	FlagKey           string
	SubjectKey        string
	SubjectAttributes SubjectAttributes

	// Variation is set only on a MATCH, with obfuscation already decoded
	// and the value coerced to the flag's variation type.
	Variation     *Variation
	VariationType VariationType
	AllocationKey string

	MatchedRule       *Rule
	MatchedAllocation *AllocationEvaluation
	// UnmatchedAllocations lists allocations positioned before the match
	// (or all of them when nothing matched), in evaluation order.
	UnmatchedAllocations []AllocationEvaluation
	// UnevaluatedAllocations lists allocations positioned after the match.
	UnevaluatedAllocations []AllocationEvaluation

	Code        EvaluationCode
	Description string

	DoLog        bool
	ExtraLogging map[string]string
	EntityID     *int64
}
