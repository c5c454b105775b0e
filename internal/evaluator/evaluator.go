// Package evaluator implements the deterministic assignment engine: rule
// matching, traffic sharding and result-diagnostics construction. The
// evaluation path is pure and stateless per call; the same configuration
// and subject always produce the same result, here and in every other
// client implementation of the protocol.
package evaluator

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/labara-io/labara-go/internal/domain"
	"github.com/labara-io/labara-go/internal/obfuscation"
	"github.com/labara-io/labara-go/internal/sharder"
)

// Evaluator walks a flag's ordered allocations and decides which variation
// (if any) a subject receives.
type Evaluator struct {
	sharder sharder.Sharder
	now     func() time.Time
}

// Option customizes an Evaluator.
type Option func(*Evaluator)

// WithSharder swaps the sharding strategy. Production uses the MD5
// sharder; tests may inject a deterministic lookup table.
func WithSharder(s sharder.Sharder) Option {
	return func(e *Evaluator) {
		e.sharder = s
	}
}

// WithClock overrides the time source used for allocation windows.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// New creates an evaluator with the production sharder and wall clock.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		sharder: sharder.NewMD5Sharder(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UnrecognizedFlag builds the terminal result for a flag key the current
// configuration does not contain.
func (e *Evaluator) UnrecognizedFlag(flagKey, subjectKey string, attrs domain.SubjectAttributes) domain.FlagEvaluation {
	return domain.FlagEvaluation{
		FlagKey:           flagKey,
		SubjectKey:        subjectKey,
		SubjectAttributes: attrs,
		Code:              domain.CodeFlagUnrecognizedOrDisabled,
		Description:       fmt.Sprintf("Unrecognized or disabled flag: %s", flagKey),
	}
}

// Evaluate runs the allocation state machine for one flag and one subject.
// flagKey is the caller-facing key; when the configuration is obfuscated
// it differs from flag.Key, which holds the hashed form.
func (e *Evaluator) Evaluate(flag *domain.Flag, flagKey, subjectKey string, attrs domain.SubjectAttributes, obfuscated bool) domain.FlagEvaluation {
	result := domain.FlagEvaluation{
		FlagKey:           flagKey,
		SubjectKey:        subjectKey,
		SubjectAttributes: attrs,
		VariationType:     flag.VariationType,
		EntityID:          flag.EntityID,
	}

	if !flag.Enabled || flag.Key == "" || len(flag.Allocations) == 0 {
		result.Code = domain.CodeFlagUnrecognizedOrDisabled
		result.Description = fmt.Sprintf("Unrecognized or disabled flag: %s", flagKey)
		return result
	}

	now := e.now()
	var unmatched []domain.AllocationEvaluation

	for i := range flag.Allocations {
		allocation := &flag.Allocations[i]
		position := i + 1

		if allocation.StartAt != nil && now.Before(*allocation.StartAt) {
			unmatched = append(unmatched, domain.AllocationEvaluation{
				Key:           allocation.Key,
				Code:          domain.AllocationBeforeStartTime,
				OrderPosition: position,
			})
			continue
		}
		if allocation.EndAt != nil && now.After(*allocation.EndAt) {
			unmatched = append(unmatched, domain.AllocationEvaluation{
				Key:           allocation.Key,
				Code:          domain.AllocationAfterEndTime,
				OrderPosition: position,
			})
			continue
		}

		matchedRule := matchingRule(allocation.Rules, attrs, subjectKey, obfuscated)
		if len(allocation.Rules) > 0 && matchedRule == nil {
			unmatched = append(unmatched, domain.AllocationEvaluation{
				Key:           allocation.Key,
				Code:          domain.AllocationFailingRule,
				OrderPosition: position,
			})
			continue
		}

		winningSplit := e.matchingSplit(flag, allocation.Splits, subjectKey, obfuscated)
		if winningSplit == nil {
			unmatched = append(unmatched, domain.AllocationEvaluation{
				Key:           allocation.Key,
				Code:          domain.AllocationTrafficExposureMiss,
				OrderPosition: position,
			})
			continue
		}

		result.MatchedAllocation = &domain.AllocationEvaluation{
			Key:           allocation.Key,
			Code:          domain.AllocationMatch,
			OrderPosition: position,
		}
		result.MatchedRule = matchedRule
		result.UnmatchedAllocations = unmatched
		for j := i + 1; j < len(flag.Allocations); j++ {
			result.UnevaluatedAllocations = append(result.UnevaluatedAllocations, domain.AllocationEvaluation{
				Key:           flag.Allocations[j].Key,
				Code:          domain.AllocationUnevaluated,
				OrderPosition: j + 1,
			})
		}
		result.DoLog = allocation.DoLog

		e.finishMatch(&result, flag, flagKey, subjectKey, allocation, winningSplit, obfuscated)
		return result
	}

	result.Code = domain.CodeDefaultAllocationNull
	result.UnmatchedAllocations = unmatched
	result.Description = fmt.Sprintf("No allocations matched for flag %q; subject %s receives no variation", flagKey, subjectKey)
	return result
}

// matchingRule returns the first rule whose conditions all hold, nil when
// none does. An allocation matches if ANY of its rules matches; a rule
// matches iff EVERY condition matches.
func matchingRule(rules []domain.Rule, attrs domain.SubjectAttributes, subjectKey string, obfuscated bool) *domain.Rule {
	for i := range rules {
		if ruleMatches(&rules[i], attrs, subjectKey, obfuscated) {
			return &rules[i]
		}
	}
	return nil
}

func ruleMatches(rule *domain.Rule, attrs domain.SubjectAttributes, subjectKey string, obfuscated bool) bool {
	for _, cond := range rule.Conditions {
		if !conditionMatches(cond, attrs, subjectKey, obfuscated) {
			return false
		}
	}
	return true
}

// matchingSplit returns the first split whose shards all place the subject
// inside one of their ranges.
func (e *Evaluator) matchingSplit(flag *domain.Flag, splits []domain.Split, subjectKey string, obfuscated bool) *domain.Split {
	for i := range splits {
		if e.splitMatches(flag, &splits[i], subjectKey, obfuscated) {
			return &splits[i]
		}
	}
	return nil
}

func (e *Evaluator) splitMatches(flag *domain.Flag, split *domain.Split, subjectKey string, obfuscated bool) bool {
	for _, shard := range split.Shards {
		if !e.shardMatches(flag, shard, subjectKey, obfuscated) {
			return false
		}
	}
	return true
}

func (e *Evaluator) shardMatches(flag *domain.Flag, shard domain.Shard, subjectKey string, obfuscated bool) bool {
	if flag.TotalShards <= 0 {
		return false
	}

	salt := shard.Salt
	if obfuscated {
		decoded, err := obfuscation.DecodeBase64(salt)
		if err != nil {
			return false
		}
		salt = decoded
	}

	bucket := e.sharder.Shard(salt+"-"+subjectKey, flag.TotalShards)
	for _, r := range shard.Ranges {
		if r.Contains(bucket) {
			return true
		}
	}
	return false
}

// finishMatch resolves the winning split's variation, applies obfuscation
// decoding to the winning path only, validates the value against the
// flag's declared type and fills in the diagnostic description.
func (e *Evaluator) finishMatch(result *domain.FlagEvaluation, flag *domain.Flag, flagKey, subjectKey string, allocation *domain.Allocation, split *domain.Split, obfuscated bool) {
	allocationKey := allocation.Key
	if obfuscated {
		allocationKey = obfuscation.DecodeBase64Lossy(allocationKey)
	}
	result.AllocationKey = allocationKey

	variation, ok := flag.Variations[split.VariationKey]
	if !ok {
		result.Code = domain.CodeAssignmentError
		result.Description = fmt.Sprintf("Variation %q is not configured for flag %q", split.VariationKey, flagKey)
		return
	}

	resolved, err := resolveVariation(variation, flag.VariationType, obfuscated)
	if err != nil {
		result.Code = domain.CodeAssignmentError
		result.Description = fmt.Sprintf("Variation %q of flag %q has value %v incompatible with type %s",
			variation.Key, flagKey, variation.Value, flag.VariationType)
		return
	}

	result.Variation = &resolved
	result.Code = domain.CodeMatch
	result.ExtraLogging = decodeExtraLogging(split.ExtraLogging, obfuscated)
	result.Description = matchDescription(subjectKey, allocationKey, resolved.Key,
		len(allocation.Rules) > 0, len(allocation.Splits) > 1 || len(split.Shards) > 1)
}

func decodeExtraLogging(extra map[string]string, obfuscated bool) map[string]string {
	if len(extra) == 0 {
		return nil
	}
	if !obfuscated {
		out := make(map[string]string, len(extra))
		for k, v := range extra {
			out[k] = v
		}
		return out
	}
	out := make(map[string]string, len(extra))
	for k, v := range extra {
		out[obfuscation.DecodeBase64Lossy(k)] = obfuscation.DecodeBase64Lossy(v)
	}
	return out
}

// matchDescription selects the human-readable explanation for a match.
// The wording is part of the shared diagnostic surface across client
// implementations.
func matchDescription(subjectKey, allocationKey, variationKey string, hasRules, experimentOrPartialRollout bool) string {
	switch {
	case hasRules && experimentOrPartialRollout:
		return fmt.Sprintf(
			"Supplied attributes match rules defined in allocation %q and %s belongs to the range of traffic assigned to %q.",
			allocationKey, subjectKey, variationKey)
	case hasRules:
		return fmt.Sprintf("Supplied attributes match rules defined in allocation %q.", allocationKey)
	default:
		return fmt.Sprintf(
			"%s belongs to the range of traffic assigned to %q defined in allocation %q.",
			subjectKey, variationKey, allocationKey)
	}
}

// resolveVariation decodes (when obfuscated) and type-checks the winning
// variation. Integer flags require a numeric value with zero fractional
// part; anything else is an assignment error, never a silent truncation.
func resolveVariation(variation domain.Variation, variationType domain.VariationType, obfuscated bool) (domain.Variation, error) {
	key := variation.Key
	value := variation.Value

	if obfuscated {
		key = obfuscation.DecodeBase64Lossy(key)
		s, ok := value.(string)
		if !ok {
			return domain.Variation{}, fmt.Errorf("obfuscated variation value is %T, not string", value)
		}
		decoded, err := obfuscation.DecodeBase64(s)
		if err != nil {
			return domain.Variation{}, fmt.Errorf("decode variation value: %w", err)
		}
		value = decoded
	}

	typed, err := coerceValue(value, variationType)
	if err != nil {
		return domain.Variation{}, err
	}
	return domain.Variation{Key: key, Value: typed}, nil
}

func coerceValue(value any, variationType domain.VariationType) (any, error) {
	switch variationType {
	case domain.BooleanVariation:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("parse boolean: %w", err)
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("value %v is not boolean", value)

	case domain.IntegerVariation:
		f, ok := numericForm(value)
		if !ok {
			return nil, fmt.Errorf("value %v is not numeric", value)
		}
		if math.Trunc(f) != f {
			return nil, fmt.Errorf("value %v has a fractional part", value)
		}
		return int64(f), nil

	case domain.NumericVariation:
		f, ok := numericForm(value)
		if !ok {
			return nil, fmt.Errorf("value %v is not numeric", value)
		}
		return f, nil

	case domain.StringVariation, domain.JSONVariation:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("value %v is not a string", value)
		}
		return s, nil
	}

	return nil, fmt.Errorf("unknown variation type %q", variationType)
}

// numericForm tries the direct numeric form first, then the
// string-then-numeric form.
func numericForm(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
