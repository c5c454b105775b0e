// Package obfuscation implements the transport-level scheme that hides
// configuration names and values from casual inspection of network
// traffic. Names that are only ever compared for equality (attribute
// names, operator tokens, boolean literals, membership values, flag keys)
// travel as unsalted MD5 hex digests; values that must be recovered
// verbatim (salts, allocation and variation keys and values, extra-logging
// entries, version and regex operands) travel base64-encoded.
package obfuscation

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"

	"github.com/labara-io/labara-go/internal/domain"
)

// Hash returns the unsalted MD5 hex digest of s.
func Hash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// DecodeBase64 recovers a verbatim value from its base64 form.
func DecodeBase64(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeBase64Lossy decodes s and falls back to the raw input when it is
// not valid base64. Used on diagnostic-only fields where a decode failure
// must not abort evaluation.
func DecodeBase64Lossy(s string) string {
	decoded, err := DecodeBase64(s)
	if err != nil {
		return s
	}
	return decoded
}

var (
	hashedTrue  = Hash("true")
	hashedFalse = Hash("false")

	hashedOperators = buildOperatorTable()
)

func buildOperatorTable() map[string]domain.Operator {
	table := make(map[string]domain.Operator)
	for _, op := range domain.Operators() {
		table[Hash(string(op))] = op
	}
	return table
}

// OperatorFromHash resolves an MD5-hashed operator token.
func OperatorFromHash(h string) (domain.Operator, bool) {
	op, ok := hashedOperators[h]
	return op, ok
}

// IsHashedTrue reports whether h is the digest of the literal "true".
func IsHashedTrue(h string) bool {
	return h == hashedTrue
}

// IsHashedFalse reports whether h is the digest of the literal "false".
func IsHashedFalse(h string) bool {
	return h == hashedFalse
}
