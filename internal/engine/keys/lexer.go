package keys

import (
	"fmt"

	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

const (
	identifierToken int = iota
	digitsToken
	specialNameToken
	semicolonToken
	colonToken
	lessToken
	greaterToken
	openParenToken
	closeParenToken
	openBraceToken
	closeBraceToken
)

var (
	identifierMatcher  = parsly.NewToken(identifierToken, "identifier", &identifier{})
	digitsMatcher      = parsly.NewToken(digitsToken, "digits", &digits{})
	specialNameMatcher = parsly.NewToken(specialNameToken, "<init> or <clinit>", matcher.NewFragments([]byte("<init>"), []byte("<clinit>")))
	semicolonMatcher   = parsly.NewToken(semicolonToken, "';'", matcher.NewByte(';'))
	colonMatcher       = parsly.NewToken(colonToken, "':'", matcher.NewByte(':'))
	lessMatcher        = parsly.NewToken(lessToken, "'<'", matcher.NewByte('<'))
	greaterMatcher     = parsly.NewToken(greaterToken, "'>'", matcher.NewByte('>'))
	openParenMatcher   = parsly.NewToken(openParenToken, "'('", matcher.NewByte('('))
	closeParenMatcher  = parsly.NewToken(closeParenToken, "')'", matcher.NewByte(')'))
	openBraceMatcher   = parsly.NewToken(openBraceToken, "'{'", matcher.NewByte('{'))
	closeBraceMatcher  = parsly.NewToken(closeBraceToken, "'}'", matcher.NewByte('}'))
)

// identifier matches a run of Java identifier bytes. '$' is excluded: keys use
// it as the nesting separator.
type identifier struct{}

func (i *identifier) Match(cursor *parsly.Cursor) (matched int) {
	for pos := cursor.Pos; pos < cursor.InputSize; pos++ {
		if !isIdentByte(cursor.Input[pos]) {
			return matched
		}
		matched++
	}
	return matched
}

type digits struct{}

func (d *digits) Match(cursor *parsly.Cursor) (matched int) {
	for pos := cursor.Pos; pos < cursor.InputSize; pos++ {
		if c := cursor.Input[pos]; c < '0' || c > '9' {
			return matched
		}
		matched++
	}
	return matched
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c >= 0x80
}

// lexer scans a key left to right with one byte of lookahead.
type lexer struct {
	key    string
	cursor *parsly.Cursor
}

func newLexer(key string) *lexer {
	return &lexer{key: key, cursor: parsly.NewCursor("", []byte(key), 0)}
}

func (l *lexer) offset() int { return l.cursor.Pos }

func (l *lexer) atEnd() bool { return l.cursor.Pos >= l.cursor.InputSize }

func (l *lexer) peek() byte {
	if l.atEnd() {
		return 0
	}
	return l.cursor.Input[l.cursor.Pos]
}

func (l *lexer) advance() { l.cursor.Pos++ }

// take consumes c when it is next.
func (l *lexer) take(c byte) bool {
	if l.peek() != c || l.atEnd() {
		return false
	}
	l.cursor.Pos++
	return true
}

// match consumes tok and returns its text, or reports false without moving.
func (l *lexer) match(tok *parsly.Token) (string, bool) {
	start := l.cursor.Pos
	if l.cursor.MatchOne(tok).Code != tok.Code {
		l.cursor.Pos = start
		return "", false
	}
	return l.key[start:l.cursor.Pos], true
}

func (l *lexer) expect(tok *parsly.Token) (string, error) {
	text, ok := l.match(tok)
	if !ok {
		return "", l.errorf("expected %s", tok.Name)
	}
	return text, nil
}

func (l *lexer) errorf(format string, args ...interface{}) error {
	reason := fmt.Sprintf(format, args...)
	if l.atEnd() {
		reason += ", found end of key"
	} else {
		reason += fmt.Sprintf(", found %q", l.peek())
	}
	return &DecodeError{Key: l.key, Offset: l.cursor.Pos, Reason: reason}
}
