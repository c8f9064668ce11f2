// Package filter implements the --where expressions.
package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sigreer/lsblkpro/internal/units"
)

// SizeKey is the only field that supports relative comparison
const SizeKey = "size"

// Op is a comparison operator
type Op string

const (
	OpEq    Op = "="
	OpNe    Op = "!="
	OpMatch Op = "=~"
	OpGt    Op = ">"
	OpGe    Op = ">="
	OpLt    Op = "<"
	OpLe    Op = "<="
	OpSet   Op = ""
)

// longest first so "!=" and "=~" are never read as "="
var operators = []Op{OpMatch, OpNe, OpGe, OpLe, OpEq, OpGt, OpLt}

// Subject is anything a predicate can be evaluated against
type Subject interface {
	Lookup(key string) (string, bool)
	Size() (int64, bool)
}

// Env supplies the size collaborators
type Env struct {
	FormatSize func(int64) string
	ParseSize  func(string) (int64, error)
}

// DefaultEnv formats sizes the way lsblk does
func DefaultEnv() Env {
	return Env{FormatSize: units.ShortSize, ParseSize: units.ParseSize}
}

// Predicate is one compiled filter expression
type Predicate struct {
	Key   string
	Op    Op
	Value string

	re    *regexp.Regexp
	bytes int64
	env   Env
}

// Compile parses <key><op><value> expressions
func Compile(exprs []string, env Env) ([]Predicate, error) {
	preds := make([]Predicate, 0, len(exprs))
	for _, expr := range exprs {
		p, err := compileOne(expr, env)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func compileOne(expr string, env Env) (Predicate, error) {
	p := Predicate{env: env}

	idx := strings.IndexAny(expr, "=!<>")
	if idx < 0 {
		p.Key, p.Op = expr, OpSet
	} else {
		p.Key = expr[:idx]
		rest := expr[idx:]
		for _, op := range operators {
			if strings.HasPrefix(rest, string(op)) {
				p.Op = op
				p.Value = rest[len(op):]
				break
			}
		}
		if p.Op == OpSet {
			return p, fmt.Errorf("invalid filter %q: unknown operator", expr)
		}
	}
	if p.Key == "" {
		return p, fmt.Errorf("invalid filter %q: missing field name", expr)
	}

	switch p.Op {
	case OpMatch:
		re, err := regexp.Compile("^(?:" + p.Value + ")")
		if err != nil {
			return p, fmt.Errorf("invalid filter %q: %w", expr, err)
		}
		p.re = re
	case OpGt, OpGe, OpLt, OpLe:
		if p.Key != SizeKey {
			return p, fmt.Errorf("invalid filter %q: %s only works on %s", expr, p.Op, SizeKey)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(p.Value), 10, 64)
		if err != nil {
			if n, err = env.ParseSize(p.Value); err != nil {
				return p, fmt.Errorf("invalid filter %q: %w", expr, err)
			}
		}
		p.bytes = n
	}
	return p, nil
}

// Match evaluates the predicate. A field the subject does not have never matches.
func (p Predicate) Match(s Subject) bool {
	switch p.Op {
	case OpGt, OpGe, OpLt, OpLe:
		size, ok := s.Size()
		if !ok {
			return false
		}
		switch p.Op {
		case OpGt:
			return size > p.bytes
		case OpGe:
			return size >= p.bytes
		case OpLt:
			return size < p.bytes
		default:
			return size <= p.bytes
		}
	}

	v, ok := p.value(s)
	if !ok {
		return false
	}
	switch p.Op {
	case OpSet:
		return v != ""
	case OpEq:
		return v == p.Value
	case OpNe:
		return v != p.Value
	case OpMatch:
		return p.re.MatchString(v)
	}
	return false
}

// value is the display string compared by =, != and =~. For size that is
// the short formatted size, so size=4.0G works but size=4GB does not.
func (p Predicate) value(s Subject) (string, bool) {
	if p.Key == SizeKey {
		size, ok := s.Size()
		if !ok {
			return "", false
		}
		return p.env.FormatSize(size), true
	}
	return s.Lookup(p.Key)
}

// String describes the predicate for the "Showing only entries where" banner
func (p Predicate) String() string {
	switch p.Op {
	case OpSet:
		return fmt.Sprintf("%s is set", p.Key)
	case OpMatch:
		return fmt.Sprintf("%s matches regexp /%s/", p.Key, p.Value)
	case OpGt, OpGe, OpLt, OpLe:
		return fmt.Sprintf("%s %s %d bytes", p.Key, p.Op, p.bytes)
	}
	return fmt.Sprintf("%s %s %s", p.Key, p.Op, p.Value)
}

// Apply keeps the subjects every predicate matches, in order
func Apply[T Subject](preds []Predicate, subjects []T) []T {
	if len(preds) == 0 {
		return subjects
	}
	var kept []T
	for _, s := range subjects {
		if MatchAll(preds, s) {
			kept = append(kept, s)
		}
	}
	return kept
}

// MatchAll reports whether s satisfies every predicate
func MatchAll(preds []Predicate, s Subject) bool {
	for _, p := range preds {
		if !p.Match(s) {
			return false
		}
	}
	return true
}

// Describe renders every predicate
func Describe(preds []Predicate) []string {
	out := make([]string, len(preds))
	for i, p := range preds {
		out[i] = p.String()
	}
	return out
}
