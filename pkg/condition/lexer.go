package condition

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokBool
	tokNull
	tokEq
	tokNeq
	tokLt
	tokLte
	tokGt
	tokGte
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

type operator struct {
	text string
	kind tokenKind
}

var operators = []operator{
	{"==", tokEq},
	{"!=", tokNeq},
	{"<=", tokLte},
	{">=", tokGte},
	{"&&", tokAnd},
	{"||", tokOr},
	{"<", tokLt},
	{">", tokGt},
	{"!", tokNot},
	{"(", tokLParen},
	{")", tokRParen},
}

func lex(input string) ([]token, error) {
	var tokens []token
	pos := 0
	for pos < len(input) {
		ch := input[pos]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			pos++
			continue
		}

		if ch == '"' || ch == '\'' {
			text, next, err := lexString(input, pos)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokString, text: text})
			pos = next
			continue
		}

		if op, ok := matchOperator(input[pos:]); ok {
			tokens = append(tokens, token{kind: op.kind, text: op.text})
			pos += len(op.text)
			continue
		}
		if ch == '=' || ch == '&' || ch == '|' {
			return nil, fmt.Errorf("condition: stray %q at offset %d", ch, pos)
		}

		start := pos
		for pos < len(input) && !isDelimiter(input[pos]) {
			pos++
		}
		word := input[start:pos]
		tokens = append(tokens, classifyWord(word))
	}
	return tokens, nil
}

func matchOperator(rest string) (operator, bool) {
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			return op, true
		}
	}
	return operator{}, false
}

func lexString(input string, start int) (string, int, error) {
	quote := input[start]
	pos := start + 1
	escaped := false
	for pos < len(input) {
		c := input[pos]
		pos++
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == quote:
			body := input[start+1 : pos-1]
			if quote == '\'' {
				body = strings.ReplaceAll(body, `\'`, `'`)
				body = strings.ReplaceAll(body, `"`, `\"`)
			}
			value, err := strconv.Unquote(`"` + body + `"`)
			if err != nil {
				return "", 0, fmt.Errorf("condition: bad string literal at offset %d: %w", start, err)
			}
			return value, pos, nil
		}
	}
	return "", 0, fmt.Errorf("condition: unterminated string starting at offset %d", start)
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '!', '=', '<', '>', '&', '|', '"', '\'':
		return true
	}
	return false
}

func classifyWord(word string) token {
	switch strings.ToLower(word) {
	case "true", "false":
		return token{kind: tokBool, text: strings.ToLower(word)}
	case "null", "nil":
		return token{kind: tokNull, text: "null"}
	}
	if looksNumeric(word) {
		if _, err := strconv.ParseFloat(word, 64); err == nil {
			return token{kind: tokNumber, text: word}
		}
	}
	return token{kind: tokIdent, text: word}
}

func looksNumeric(word string) bool {
	if word == "" {
		return false
	}
	c := word[0]
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}
