package rules

import (
	"regexp"
	"unicode/utf8"

	"github.com/bluele/gcache"
	"github.com/pkg/errors"
)

// Pattern is a compiled pattern.
type Pattern interface {
	Match(payload []byte) (bool, error)
	String() string
}

// Compiler compiles pattern expressions.
type Compiler interface {
	Compile(expr []byte, caseSensitive bool) (Pattern, error)
}

// DefaultPatternCacheSize is the number of compiled patterns kept across reloads.
const DefaultPatternCacheSize = 4096

// regexpPattern matches bytes, not UTF-8 text. The expression and every
// payload are widened so that each byte becomes the rune of the same value:
// \xff matches the byte 0xff and . matches exactly one byte.
type regexpPattern struct {
	re   *regexp.Regexp
	expr string
}

func (r *regexpPattern) Match(payload []byte) (bool, error) {
	return r.re.Match(widen(payload)), nil
}

func (r *regexpPattern) String() string {
	return r.expr
}

// widen returns b with every byte above 0x7f encoded as the rune of the same
// value. ASCII input is returned as is.
func widen(b []byte) []byte {

	high := 0
	for _, c := range b {
		if c >= utf8.RuneSelf {
			high++
		}
	}

	if high == 0 {
		return b
	}

	wide := make([]byte, 0, len(b)+high)
	for _, c := range b {
		wide = utf8.AppendRune(wide, rune(c))
	}

	return wide
}

type patternKey struct {
	expr          string
	caseSensitive bool
}

// RegexpCompiler compiles patterns with the regexp package. Compiled
// patterns are kept in an LRU cache so that reloading the same rules does
// not compile them again.
type RegexpCompiler struct {
	cache gcache.Cache
}

// NewRegexpCompiler returns a compiler caching up to size patterns.
func NewRegexpCompiler(size int) *RegexpCompiler {

	if size <= 0 {
		size = DefaultPatternCacheSize
	}

	c := &RegexpCompiler{}
	c.cache = gcache.New(size).LRU().LoaderFunc(c.load).Build()

	return c
}

// Compile implements Compiler. Expressions are byte strings; any byte value
// is accepted.
func (c *RegexpCompiler) Compile(expr []byte, caseSensitive bool) (Pattern, error) {

	v, err := c.cache.Get(patternKey{expr: string(expr), caseSensitive: caseSensitive})
	if err != nil {
		return nil, err
	}

	return v.(*regexpPattern), nil
}

func (c *RegexpCompiler) load(key interface{}) (interface{}, error) {

	k := key.(patternKey)

	expr := string(widen([]byte(k.expr)))
	if !k.caseSensitive {
		expr = "(?i)" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to compile %q", k.expr)
	}

	return &regexpPattern{re: re, expr: k.expr}, nil
}
