package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/pensionledger/internal/ir"
)

// Validate checks that q only references known fields with well-formed
// values. All problems are reported together as one InvalidArgument error.
//
// Validate is a pure function with no side effects.
func Validate(q Query) error {
	v := &validator{}
	v.validateQuery(q)

	if len(v.problems) == 0 {
		return nil
	}
	return &ir.Error{Code: ir.CodeInvalidArgument, Message: "invalid filter: " + strings.Join(v.problems, "; ")}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addProblem("nil query")
			return
		}
		v.validateSelect(*query)
	default:
		v.addProblem("unsupported query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.Limit < 0 {
		v.addProblem("limit must be non-negative, got %d", sel.Limit)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case Contains:
		v.validateContains(pred)
	case *Contains:
		v.validateContains(*pred)
	case Compare:
		v.validateCompare(pred)
	case *Compare:
		v.validateCompare(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	case Or:
		v.validateOr(pred)
	case *Or:
		v.validateOr(*pred)
	case nil:
		v.addProblem("nil predicate")
	default:
		v.addProblem("unsupported predicate type %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	if !knownField(eq.Field) {
		v.addProblem("unknown field %q", eq.Field)
		return
	}
	v.validateValue(eq.Field, eq.Value)
}

func (v *validator) validateContains(c Contains) {
	if c.Field != FieldID && c.Field != FieldRecipientName && c.Field != FieldStatus {
		v.addProblem("field %q does not support substring match", c.Field)
	}
	if c.Substring == "" {
		v.addProblem("substring for %q is empty", c.Field)
	}
}

func (v *validator) validateCompare(c Compare) {
	if c.Field != FieldAmount && c.Field != FieldLastUpdated {
		v.addProblem("field %q is not ordered", c.Field)
		return
	}
	if c.Op != OpAtLeast && c.Op != OpAtMost {
		v.addProblem("unknown operator %q", c.Op)
	}
	v.validateValue(c.Field, c.Value)
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}

func (v *validator) validateOr(or Or) {
	for _, sub := range or.Predicates {
		v.validatePredicate(sub)
	}
}

// validateValue checks that value is text in field's canonical profile.
func (v *validator) validateValue(field string, value ir.Value) {
	s, ok := value.(ir.Str)
	if !ok {
		v.addProblem("value for %q must be a string, got %T", field, value)
		return
	}

	switch field {
	case FieldAmount:
		if _, err := ir.ParseAmount(string(s)); err != nil {
			v.addProblem("amount %q: %v", s, err)
		}
	case FieldStatus:
		if !ir.Status(s).Valid() {
			v.addProblem("status %q must be one of %v", s, ir.ValidStatuses)
		}
	case FieldLastUpdated:
		if _, err := ir.ParseTimestamp(string(s)); err != nil {
			v.addProblem("lastUpdated %q: %v", s, err)
		}
	}
}

func knownField(f string) bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}
