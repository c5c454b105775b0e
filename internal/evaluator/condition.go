package evaluator

import (
	"regexp"
	"strconv"

	"github.com/Masterminds/semver/v3"

	"github.com/labara-io/labara-go/internal/domain"
	"github.com/labara-io/labara-go/internal/obfuscation"
)

// subjectKeyAttribute is the reserved attribute name that resolves to the
// subject key when the caller did not supply it explicitly.
const subjectKeyAttribute = "id"

var hashedSubjectKeyAttribute = obfuscation.Hash(subjectKeyAttribute)

// conditionMatches decides whether one targeting condition holds for the
// subject. Malformed conditions fail to false; evaluation never aborts on
// a single bad check.
func conditionMatches(cond domain.Condition, attrs domain.SubjectAttributes, subjectKey string, obfuscated bool) bool {
	value, isNull := resolveAttribute(cond.Attribute, attrs, subjectKey, obfuscated)

	operator, ok := resolveOperator(cond.Operator, obfuscated)
	if !ok {
		return false
	}

	if operator == domain.OperatorIsNull {
		intent, ok := nullCheckIntent(cond.Value, obfuscated)
		if !ok {
			return false
		}
		return intent == isNull
	}

	// Every non-null-check operator fails against a null attribute.
	if isNull {
		return false
	}

	switch operator {
	case domain.OperatorLessThan, domain.OperatorLessThanEqual,
		domain.OperatorGreaterThan, domain.OperatorGreaterThanEqual:
		return orderedCompare(operator, value, cond.Value, obfuscated)

	case domain.OperatorMatches:
		return regexMatches(value, cond.Value, obfuscated)

	case domain.OperatorNotMatches:
		// A malformed pattern fails the check either way.
		pattern, ok := conditionString(cond.Value, obfuscated)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		attrString, ok := stringForm(value)
		if !ok {
			return false
		}
		return !re.MatchString(attrString)

	case domain.OperatorOneOf:
		return membership(value, cond.Value, obfuscated)

	case domain.OperatorNotOneOf:
		members, ok := stringSlice(cond.Value)
		if !ok {
			return false
		}
		attrString, ok := stringForm(value)
		if !ok {
			return false
		}
		return !contains(members, membershipTarget(attrString, obfuscated))
	}

	return false
}

// resolveAttribute returns the subject's value for the condition's
// attribute and whether that value is null (absent or explicitly nil).
// When obfuscated, the condition carries the MD5 digest of the attribute
// name. An unresolved "id" attribute falls back to the subject key.
func resolveAttribute(attribute string, attrs domain.SubjectAttributes, subjectKey string, obfuscated bool) (any, bool) {
	if obfuscated {
		for name, value := range attrs {
			if obfuscation.Hash(name) == attribute {
				return value, value == nil
			}
		}
		if attribute == hashedSubjectKeyAttribute {
			return subjectKey, false
		}
		return nil, true
	}

	if value, ok := attrs[attribute]; ok {
		return value, value == nil
	}
	if attribute == subjectKeyAttribute {
		return subjectKey, false
	}
	return nil, true
}

// resolveOperator maps the wire token to an operator, resolving MD5-hashed
// tokens in obfuscated mode.
func resolveOperator(op domain.Operator, obfuscated bool) (domain.Operator, bool) {
	if obfuscated {
		return obfuscation.OperatorFromHash(string(op))
	}
	for _, known := range domain.Operators() {
		if op == known {
			return op, true
		}
	}
	return "", false
}

// nullCheckIntent decodes the boolean operand of IS_NULL: a plain boolean,
// or in obfuscated mode a string compared against the digest of "true".
func nullCheckIntent(value any, obfuscated bool) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		if obfuscated {
			if obfuscation.IsHashedTrue(v) {
				return true, true
			}
			if obfuscation.IsHashedFalse(v) {
				return false, true
			}
			return false, false
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return false, false
		}
		return parsed, true
	}
	return false, false
}

// orderedCompare applies LT/LTE/GT/GTE: semver ordering when both sides
// parse as semantic versions, numeric ordering otherwise, false when
// neither interpretation works.
func orderedCompare(op domain.Operator, attrValue, condValue any, obfuscated bool) bool {
	attrString, ok := stringForm(attrValue)
	if !ok {
		return false
	}
	condString, ok := conditionString(condValue, obfuscated)
	if !ok {
		return false
	}

	if attrVersion, err := semver.StrictNewVersion(attrString); err == nil {
		if condVersion, err := semver.StrictNewVersion(condString); err == nil {
			return applyOrdering(op, attrVersion.Compare(condVersion))
		}
	}

	attrNumber, err1 := strconv.ParseFloat(attrString, 64)
	condNumber, err2 := strconv.ParseFloat(condString, 64)
	if err1 != nil || err2 != nil {
		return false
	}
	switch {
	case attrNumber < condNumber:
		return applyOrdering(op, -1)
	case attrNumber > condNumber:
		return applyOrdering(op, 1)
	default:
		return applyOrdering(op, 0)
	}
}

func applyOrdering(op domain.Operator, cmp int) bool {
	switch op {
	case domain.OperatorLessThan:
		return cmp < 0
	case domain.OperatorLessThanEqual:
		return cmp <= 0
	case domain.OperatorGreaterThan:
		return cmp > 0
	case domain.OperatorGreaterThanEqual:
		return cmp >= 0
	}
	return false
}

func regexMatches(attrValue, condValue any, obfuscated bool) bool {
	pattern, ok := conditionString(condValue, obfuscated)
	if !ok {
		return false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	attrString, ok := stringForm(attrValue)
	if !ok {
		return false
	}
	return re.MatchString(attrString)
}

// membership implements ONE_OF. In obfuscated mode the configured members
// are MD5 digests and the attribute's string form is hashed before the
// comparison; otherwise membership is a case-sensitive exact match.
func membership(attrValue, condValue any, obfuscated bool) bool {
	members, ok := stringSlice(condValue)
	if !ok {
		return false
	}
	attrString, ok := stringForm(attrValue)
	if !ok {
		return false
	}
	return contains(members, membershipTarget(attrString, obfuscated))
}

func membershipTarget(attrString string, obfuscated bool) string {
	if obfuscated {
		return obfuscation.Hash(attrString)
	}
	return attrString
}

func contains(members []string, target string) bool {
	for _, m := range members {
		if m == target {
			return true
		}
	}
	return false
}

// conditionString is the string form of a condition operand, base64
// decoded first in obfuscated mode.
func conditionString(value any, obfuscated bool) (string, bool) {
	s, ok := stringForm(value)
	if !ok {
		return "", false
	}
	if obfuscated {
		decoded, err := obfuscation.DecodeBase64(s)
		if err != nil {
			return "", false
		}
		return decoded, true
	}
	return s, true
}

// stringForm renders an attribute or operand value as the canonical string
// used in comparisons. Numbers render without exponent or trailing zeros
// so "3" and 3.0 compare the same across client implementations.
func stringForm(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}

// stringSlice coerces the array operand of membership operators.
func stringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
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
	default:
		return nil, false
	}
}
