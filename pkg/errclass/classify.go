// Package errclass assigns coarse classifications to persistence errors and
// maps each classification to a retry strategy. Classification is a pure
// text match over the error message and its Go type name, so it works across
// transport errors, remote API errors, and driver errors surfaced as strings.
package errclass

import (
	"fmt"
	"strings"
)

// Classification is a closed set of error categories used to pick retry policy.
type Classification string

const (
	ConnectionLost      Classification = "connection_lost"
	ConnectionTimeout   Classification = "connection_timeout"
	ResourceExhausted   Classification = "resource_exhausted"
	DataIntegrity       Classification = "data_integrity"
	AuthenticationError Classification = "authentication_error"
	RateLimit           Classification = "rate_limit"
	TemporaryError      Classification = "temporary_error"
	NetworkError        Classification = "network_error"
	UnknownError        Classification = "unknown_error"
)

// Rule is one ordered classification step. Apply receives the lowercased
// error message and type name and reports the claimed classification.
type Rule struct {
	Name  string
	Apply func(msg, typeName string) (Classification, bool)
}

// Rules is the ordered rule table. Order is load-bearing: narrow categories
// that share vocabulary with the broad connection/resource rules must run
// first (e.g. "mongodb connection pool exhausted" belongs to the pool rule,
// not the resource-exhaustion rule).
var Rules = []Rule{
	{Name: "pool-exhausted", Apply: matchPoolExhausted},
	{Name: "authentication", Apply: phraseRule(AuthenticationError, authPhrases, nil)},
	{Name: "data-integrity", Apply: phraseRule(DataIntegrity, integrityPhrases, integrityTypeHints)},
	{Name: "rate-limit", Apply: phraseRule(RateLimit, rateLimitPhrases, nil)},
	{Name: "temporary", Apply: phraseRule(TemporaryError, temporaryPhrases, nil)},
	{Name: "network", Apply: phraseRule(NetworkError, networkPhrases, nil)},
	{Name: "conn-timeout", Apply: phraseRule(ConnectionTimeout, timeoutPhrases, timeoutTypeHints)},
	{Name: "conn-lost", Apply: phraseRule(ConnectionLost, connLostPhrases, connLostTypeHints)},
	{Name: "resource-exhausted", Apply: phraseRule(ResourceExhausted, resourcePhrases, nil)},
}

var (
	authPhrases = []string{
		"access denied", "authentication failed", "unauthorized",
		"permission denied", "invalid credentials",
	}
	integrityPhrases = []string{
		"duplicate key", "integrity constraint", "unique constraint",
		"primary key", "duplicate entry",
	}
	integrityTypeHints = []string{"bulkwrite", "duplicatekey", "integrityerror"}
	rateLimitPhrases   = []string{
		"rate limit", "too many requests", "429", "throttling", "quota exceeded",
	}
	temporaryPhrases = []string{
		"temporary failure", "service unavailable", "bad gateway",
		"gateway timeout", "internal server error", "502", "503", "504",
	}
	networkPhrases = []string{
		"dns resolution failed", "ssl certificate", "certificate verify failed",
		"tls handshake", "connection aborted", "connection reset",
		"socket timeout", "network unreachable",
	}
	timeoutPhrases = []string{
		"server selection timeout", "network timeout", "read timeout",
		"write timeout",
	}
	timeoutTypeHints = []string{"connectionfailure", "timeouterror"}
	connLostPhrases  = []string{
		"lost connection", "server has gone away", "connection was killed",
		"2006", "2013", "connection refused", "can't connect",
		"connection reset by peer", "network is unreachable",
		"no route to host", "host is unreachable",
	}
	connLostTypeHints = []string{"operationalerror", "databaseerror"}
	resourcePhrases   = []string{
		"too many connections", "connection limit exceeded", "pool exhausted",
		"max connections", "out of memory", "insufficient memory",
		"disk space", "storage full",
	}
)

// Classify maps an error to its classification. Nil errors and errors no
// rule claims classify as UnknownError.
func Classify(err error) Classification {
	if err == nil {
		return UnknownError
	}
	msg := strings.ToLower(err.Error())
	typeName := strings.ToLower(fmt.Sprintf("%T", err))
	for _, rule := range Rules {
		if class, ok := rule.Apply(msg, typeName); ok {
			return class
		}
	}
	return UnknownError
}

// matchPoolExhausted handles the driver-specific split for exhausted
// connection pools: MySQL reports a dropped connection, Mongo a server
// selection timeout. Unattributed pools default to the timeout bucket.
func matchPoolExhausted(msg, _ string) (Classification, bool) {
	if !strings.Contains(msg, "connection pool exhausted") {
		return "", false
	}
	if strings.Contains(msg, "mysql") {
		return ConnectionLost, true
	}
	return ConnectionTimeout, true
}

func phraseRule(class Classification, phrases, typeHints []string) func(msg, typeName string) (Classification, bool) {
	return func(msg, typeName string) (Classification, bool) {
		for _, phrase := range phrases {
			if strings.Contains(msg, phrase) {
				return class, true
			}
		}
		for _, hint := range typeHints {
			if strings.Contains(typeName, hint) {
				return class, true
			}
		}
		return "", false
	}
}
