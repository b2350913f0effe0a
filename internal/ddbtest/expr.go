package ddbtest

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// evaluator evaluates the subset of DynamoDB condition syntax this module
// emits: comparisons, AND/OR/NOT, parentheses, attribute_exists,
// attribute_not_exists and begins_with. Function names are case-insensitive.
type evaluator struct {
	tokens []string
	pos    int
	names  map[string]string
	values map[string]types.AttributeValue
	item   map[string]types.AttributeValue
}

func evaluate(expr string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	tokens, err := tokenize(expr)
	if err != nil {
		return false, err
	}
	e := &evaluator{tokens: tokens, names: names, values: values, item: item}
	result, err := e.parseOr()
	if err != nil {
		return false, err
	}
	if e.pos != len(e.tokens) {
		return false, fmt.Errorf("ddbtest: unexpected token %q in %q", e.tokens[e.pos], expr)
	}
	return result, nil
}

func tokenize(expr string) ([]string, error) {
	var tokens []string
	runes := []rune(expr)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(' || r == ')' || r == ',' || r == '=':
			tokens = append(tokens, string(r))
			i++
		case r == '<' || r == '>':
			if i+1 < len(runes) && (runes[i+1] == '=' || (r == '<' && runes[i+1] == '>')) {
				tokens = append(tokens, string(runes[i:i+2]))
				i += 2
			} else {
				tokens = append(tokens, string(r))
				i++
			}
		case r == '#' || r == ':' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			j := i + 1
			for j < len(runes) && (runes[j] == '_' || runes[j] == '.' || unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j])) {
				j++
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j
		default:
			return nil, fmt.Errorf("ddbtest: unexpected character %q in %q", r, expr)
		}
	}
	return tokens, nil
}

func (e *evaluator) peek() string {
	if e.pos < len(e.tokens) {
		return e.tokens[e.pos]
	}
	return ""
}

func (e *evaluator) next() string {
	t := e.peek()
	e.pos++
	return t
}

func (e *evaluator) expect(tok string) error {
	if got := e.next(); got != tok {
		return fmt.Errorf("ddbtest: expected %q, got %q", tok, got)
	}
	return nil
}

func (e *evaluator) parseOr() (bool, error) {
	left, err := e.parseAnd()
	if err != nil {
		return false, err
	}
	for strings.EqualFold(e.peek(), "OR") {
		e.next()
		right, err := e.parseAnd()
		if err != nil {
			return false, err
		}
		left = left || right
	}
	return left, nil
}

func (e *evaluator) parseAnd() (bool, error) {
	left, err := e.parseUnary()
	if err != nil {
		return false, err
	}
	for strings.EqualFold(e.peek(), "AND") {
		e.next()
		right, err := e.parseUnary()
		if err != nil {
			return false, err
		}
		left = left && right
	}
	return left, nil
}

func (e *evaluator) parseUnary() (bool, error) {
	if strings.EqualFold(e.peek(), "NOT") {
		e.next()
		v, err := e.parseUnary()
		return !v, err
	}
	return e.parsePrimary()
}

func (e *evaluator) parsePrimary() (bool, error) {
	tok := e.peek()
	if tok == "(" {
		e.next()
		v, err := e.parseOr()
		if err != nil {
			return false, err
		}
		return v, e.expect(")")
	}

	switch strings.ToLower(tok) {
	case "attribute_exists", "attribute_not_exists":
		e.next()
		args, err := e.parseArgs()
		if err != nil {
			return false, err
		}
		if len(args) != 1 {
			return false, fmt.Errorf("ddbtest: %s takes one argument", tok)
		}
		_, exists := e.item[e.attrName(args[0])]
		if strings.EqualFold(tok, "attribute_exists") {
			return exists, nil
		}
		return !exists, nil
	case "begins_with":
		e.next()
		args, err := e.parseArgs()
		if err != nil {
			return false, err
		}
		if len(args) != 2 {
			return false, fmt.Errorf("ddbtest: begins_with takes two arguments")
		}
		subject, ok1 := e.operand(args[0])
		prefix, ok2 := e.operand(args[1])
		if !ok1 || !ok2 {
			return false, nil
		}
		s, ok1 := subject.(*types.AttributeValueMemberS)
		p, ok2 := prefix.(*types.AttributeValueMemberS)
		return ok1 && ok2 && strings.HasPrefix(s.Value, p.Value), nil
	}

	left := e.next()
	op := e.next()
	right := e.next()
	lv, lok := e.operand(left)
	rv, rok := e.operand(right)
	if !lok || !rok {
		return false, nil
	}
	cmp, comparable := compare(lv, rv)
	switch op {
	case "=":
		return comparable && cmp == 0, nil
	case "<>":
		return !comparable || cmp != 0, nil
	case "<":
		return comparable && cmp < 0, nil
	case "<=":
		return comparable && cmp <= 0, nil
	case ">":
		return comparable && cmp > 0, nil
	case ">=":
		return comparable && cmp >= 0, nil
	}
	return false, fmt.Errorf("ddbtest: unsupported operator %q", op)
}

func (e *evaluator) parseArgs() ([]string, error) {
	if err := e.expect("("); err != nil {
		return nil, err
	}
	var args []string
	for {
		args = append(args, e.next())
		switch e.next() {
		case ",":
			continue
		case ")":
			return args, nil
		default:
			return nil, fmt.Errorf("ddbtest: malformed argument list")
		}
	}
}

func (e *evaluator) attrName(tok string) string {
	if strings.HasPrefix(tok, "#") {
		return e.names[tok]
	}
	return tok
}

// operand resolves a placeholder or attribute path to its value. The second
// return is false when the attribute is absent from the item.
func (e *evaluator) operand(tok string) (types.AttributeValue, bool) {
	if strings.HasPrefix(tok, ":") {
		v, ok := e.values[tok]
		return v, ok
	}
	v, ok := e.item[e.attrName(tok)]
	return v, ok
}

func compare(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bv.Value), true
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		x, err1 := strconv.ParseFloat(av.Value, 64)
		y, err2 := strconv.ParseFloat(bv.Value, 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		if !ok || av.Value != bv.Value {
			return 1, ok
		}
		return 0, true
	}
	return 0, false
}
