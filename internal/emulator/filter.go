package emulator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	domindex "github.com/kailas-cloud/searchidx/internal/domain/index"
)

// filterError is reported to clients as 400.
type filterError struct{ msg string }

func (e *filterError) Error() string { return "invalid $filter: " + e.msg }

func filterErrorf(format string, args ...any) error {
	return &filterError{msg: fmt.Sprintf(format, args...)}
}

// compileFilter parses an OData $filter expression into a bleve query.
// Supported: eq ne gt ge lt le, and, or, not, parentheses and
// search.in(field, 'a,b[,...]'[, 'delimiters']).
func compileFilter(expr string, schema *schema) (query.Query, error) {
	toks, err := lexFilter(expr)
	if err != nil {
		return nil, err
	}
	p := &filterParser{toks: toks, schema: schema}
	q, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, filterErrorf("unexpected %q", p.peek().text)
	}
	return q, nil
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

func lexFilter(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ","})
			i++
		case c == '\'':
			var sb strings.Builder
			j := i + 1
			for {
				if j >= len(s) {
					return nil, filterErrorf("unterminated string literal")
				}
				if s[j] == '\'' {
					if j+1 < len(s) && s[j+1] == '\'' {
						sb.WriteByte('\'')
						j += 2
						continue
					}
					break
				}
				sb.WriteByte(s[j])
				j++
			}
			toks = append(toks, token{kind: tokString, text: sb.String()})
			i = j + 1
		default:
			j := i
			for j < len(s) && !strings.ContainsRune(" \t\n(),'", rune(s[j])) {
				j++
			}
			toks = append(toks, token{kind: tokWord, text: s[i:j]})
			i = j
		}
	}
	if len(toks) == 0 {
		return nil, filterErrorf("empty expression")
	}
	return toks, nil
}

type filterParser struct {
	toks   []token
	pos    int
	schema *schema
}

func (p *filterParser) done() bool { return p.pos >= len(p.toks) }

func (p *filterParser) peek() token {
	if p.done() {
		return token{kind: tokWord}
	}
	return p.toks[p.pos]
}

func (p *filterParser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *filterParser) keyword(word string) bool {
	t := p.peek()
	if t.kind == tokWord && strings.EqualFold(t.text, word) {
		p.pos++
		return true
	}
	return false
}

func (p *filterParser) parseOr() (query.Query, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	qs := []query.Query{left}
	for p.keyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		qs = append(qs, right)
	}
	if len(qs) == 1 {
		return left, nil
	}
	return bleve.NewDisjunctionQuery(qs...), nil
}

func (p *filterParser) parseAnd() (query.Query, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	qs := []query.Query{left}
	for p.keyword("and") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		qs = append(qs, right)
	}
	if len(qs) == 1 {
		return left, nil
	}
	return bleve.NewConjunctionQuery(qs...), nil
}

func (p *filterParser) parseUnary() (query.Query, error) {
	if p.keyword("not") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negate(inner), nil
	}
	return p.parsePrimary()
}

func (p *filterParser) parsePrimary() (query.Query, error) {
	t := p.next()
	switch {
	case t.kind == tokLParen:
		q, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRParen {
			return nil, filterErrorf("missing )")
		}
		return q, nil
	case t.kind == tokWord && strings.EqualFold(t.text, "search.in"):
		return p.parseSearchIn()
	case t.kind == tokWord && t.text != "":
		return p.parseComparison(t.text)
	default:
		return nil, filterErrorf("unexpected %q", t.text)
	}
}

func (p *filterParser) parseSearchIn() (query.Query, error) {
	if p.next().kind != tokLParen {
		return nil, filterErrorf("search.in: missing (")
	}
	ft := p.next()
	if ft.kind != tokWord {
		return nil, filterErrorf("search.in: field name expected")
	}
	f, err := p.filterable(ft.text)
	if err != nil {
		return nil, err
	}
	if p.next().kind != tokComma {
		return nil, filterErrorf("search.in: missing ,")
	}
	vt := p.next()
	if vt.kind != tokString {
		return nil, filterErrorf("search.in: value list must be a string")
	}
	delims := " ,"
	if p.peek().kind == tokComma {
		p.next()
		dt := p.next()
		if dt.kind != tokString || dt.text == "" {
			return nil, filterErrorf("search.in: delimiters must be a non-empty string")
		}
		delims = dt.text
	}
	if p.next().kind != tokRParen {
		return nil, filterErrorf("search.in: missing )")
	}
	if !f.isString() {
		return nil, filterErrorf("search.in requires a string field, %s is %s", ft.text, f.typ)
	}
	values := strings.FieldsFunc(vt.text, func(r rune) bool { return strings.ContainsRune(delims, r) })
	qs := make([]query.Query, 0, len(values))
	for _, v := range values {
		tq := bleve.NewTermQuery(v)
		tq.SetField(f.keywordField())
		qs = append(qs, tq)
	}
	if len(qs) == 0 {
		return matchNone(), nil
	}
	return bleve.NewDisjunctionQuery(qs...), nil
}

func (p *filterParser) parseComparison(fieldPath string) (query.Query, error) {
	f, err := p.filterable(fieldPath)
	if err != nil {
		return nil, err
	}
	opTok := p.next()
	if opTok.kind != tokWord {
		return nil, filterErrorf("comparison operator expected after %s", fieldPath)
	}
	op := strings.ToLower(opTok.text)
	switch op {
	case "eq", "ne", "gt", "ge", "lt", "le":
	default:
		return nil, filterErrorf("unknown operator %q", opTok.text)
	}
	lit := p.next()
	if lit.kind != tokString && lit.kind != tokWord {
		return nil, filterErrorf("literal expected after %s %s", fieldPath, op)
	}

	var q query.Query
	switch {
	case f.isString():
		if lit.kind != tokString {
			return nil, filterErrorf("%s is a string field; quote the literal", fieldPath)
		}
		q = stringComparison(f.keywordField(), op, lit.text)
	case f.typ == domindex.TypeInt32 || f.typ == domindex.TypeDouble:
		v, err := strconv.ParseFloat(lit.text, 64)
		if lit.kind != tokWord || err != nil {
			return nil, filterErrorf("%s is numeric; %q is not a number", fieldPath, lit.text)
		}
		q = numericComparison(f.path, op, v)
	case f.typ == domindex.TypeBoolean:
		v, err := strconv.ParseBool(lit.text)
		if lit.kind != tokWord || err != nil || (op != "eq" && op != "ne") {
			return nil, filterErrorf("%s is boolean; only eq/ne with true or false", fieldPath)
		}
		bq := bleve.NewBoolFieldQuery(v)
		bq.SetField(f.path)
		q = bq
		if op == "ne" {
			q = negate(bq)
		}
	case f.typ == domindex.TypeDateTimeOffset:
		v, err := time.Parse(time.RFC3339, lit.text)
		if lit.kind != tokWord || err != nil {
			return nil, filterErrorf("%s is a date; %q is not RFC 3339", fieldPath, lit.text)
		}
		q = dateComparison(f.path, op, v)
	default:
		return nil, filterErrorf("field %s of type %s cannot be compared", fieldPath, f.typ)
	}
	return q, nil
}

func (p *filterParser) filterable(path string) (schemaField, error) {
	f, ok := p.schema.field(path)
	if !ok {
		return schemaField{}, filterErrorf("unknown field %q", path)
	}
	if !f.filterable {
		return schemaField{}, filterErrorf("field %q is not filterable", path)
	}
	if f.inCollection {
		return schemaField{}, filterErrorf("field %q is inside a collection; any/all are not supported", path)
	}
	return f, nil
}

func stringComparison(field, op, v string) query.Query {
	incl, excl := true, false
	switch op {
	case "eq", "ne":
		tq := bleve.NewTermQuery(v)
		tq.SetField(field)
		if op == "ne" {
			return negate(tq)
		}
		return tq
	case "gt":
		q := bleve.NewTermRangeInclusiveQuery(v, "", &excl, nil)
		q.SetField(field)
		return q
	case "ge":
		q := bleve.NewTermRangeInclusiveQuery(v, "", &incl, nil)
		q.SetField(field)
		return q
	case "lt":
		q := bleve.NewTermRangeInclusiveQuery("", v, nil, &excl)
		q.SetField(field)
		return q
	default: // le
		q := bleve.NewTermRangeInclusiveQuery("", v, nil, &incl)
		q.SetField(field)
		return q
	}
}

func numericComparison(field, op string, v float64) query.Query {
	incl, excl := true, false
	var q *query.NumericRangeQuery
	switch op {
	case "eq", "ne":
		q = bleve.NewNumericRangeInclusiveQuery(&v, &v, &incl, &incl)
	case "gt":
		q = bleve.NewNumericRangeInclusiveQuery(&v, nil, &excl, nil)
	case "ge":
		q = bleve.NewNumericRangeInclusiveQuery(&v, nil, &incl, nil)
	case "lt":
		q = bleve.NewNumericRangeInclusiveQuery(nil, &v, nil, &excl)
	default: // le
		q = bleve.NewNumericRangeInclusiveQuery(nil, &v, nil, &incl)
	}
	q.SetField(field)
	if op == "ne" {
		return negate(q)
	}
	return q
}

func dateComparison(field, op string, v time.Time) query.Query {
	incl, excl := true, false
	var q *query.DateRangeQuery
	switch op {
	case "eq", "ne":
		q = bleve.NewDateRangeInclusiveQuery(v, v, &incl, &incl)
	case "gt":
		q = bleve.NewDateRangeInclusiveQuery(v, time.Time{}, &excl, nil)
	case "ge":
		q = bleve.NewDateRangeInclusiveQuery(v, time.Time{}, &incl, nil)
	case "lt":
		q = bleve.NewDateRangeInclusiveQuery(time.Time{}, v, nil, &excl)
	default: // le
		q = bleve.NewDateRangeInclusiveQuery(time.Time{}, v, nil, &incl)
	}
	q.SetField(field)
	if op == "ne" {
		return negate(q)
	}
	return q
}

func negate(q query.Query) query.Query {
	bq := bleve.NewBooleanQuery()
	bq.AddMust(bleve.NewMatchAllQuery())
	bq.AddMustNot(q)
	return bq
}

func matchNone() query.Query { return bleve.NewMatchNoneQuery() }
