// Package filterexpr binds CEL filter strings and order_by clauses to plain
// params structs.
package filterexpr

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Msg is any request carrying a filter and an order_by string.
type Msg interface {
	GetFilter() string
	GetOrderBy() string
}

// ValueKind is the literal type a filter field accepts.
type ValueKind string

const (
	KindString    ValueKind = "string"
	KindNumber    ValueKind = "number"
	KindTimestamp ValueKind = "timestamp"
)

// Op is a comparison allowed in a filter.
type Op string

const (
	OpEQ  Op = "=="
	OpGT  Op = ">"
	OpGTE Op = ">="
	OpLT  Op = "<"
	OpLTE Op = "<="
	OpSW  Op = "startsWith"
	OpIN  Op = "in"
)

// SetterFunc replaces the default assignment of a literal to a params field.
type SetterFunc func(field reflect.Value, value any) error

// FilterField declares a filterable name. Ops maps each permitted operator
// to the params struct field that receives the literal.
type FilterField struct {
	Expr   string
	Kind   ValueKind
	Ops    map[Op]string
	Setter SetterFunc
}

// OrderField maps an order key to a SQL expression. Nulls is "first" or
// "last" (the default).
type OrderField struct {
	Expr  string
	Nulls string
}

// OrderSchema whitelists order keys and supplies the defaults.
type OrderSchema struct {
	DefaultPrimary     string
	DefaultPrimaryDesc bool
	FallbackKey        string
	FallbackDesc       bool
	Fields             map[string]OrderField
}

// ResourceSchema is the filter and order contract of one listing.
type ResourceSchema struct {
	Filter map[string]FilterField
	Order  OrderSchema
}

var (
	errNilBinding  = errors.New("binding must be a non-nil pointer to a struct")
	errOnlyAnd     = errors.New("only AND (&&) may join conditions")
	errNotLiteral  = errors.New("right-hand side must be a literal, list literal, or timestamp() call")
	errListStrings = errors.New("list literal elements must be strings")
)

// comparisons are the binary CEL operators a filter may use.
var comparisons = map[string]Op{
	"_==_": OpEQ,
	"_>_":  OpGT,
	"_>=_": OpGTE,
	"_<_":  OpLT,
	"_<=_": OpLTE,
}

// Bind parses the request filter and order_by and populates the params struct.
// Only AND-joined comparisons against literals are accepted; each allowed
// (field, op) pair names the params field that receives the literal.
func Bind[M Msg, P any](msg M, binding *P, schema ResourceSchema) error {
	if binding == nil {
		return errNilBinding
	}
	dest := reflect.ValueOf(binding).Elem()
	if dest.Kind() != reflect.Struct {
		return errNilBinding
	}

	b := binder{dest: dest, fields: schema.Filter}
	if err := b.bindFilter(msg.GetFilter()); err != nil {
		return fmt.Errorf("filter: %w", err)
	}

	order, err := ParseOrderBy(msg.GetOrderBy(), schema.Order)
	if err != nil {
		return fmt.Errorf("order_by: %w", err)
	}
	return setOrderParams(binding, order)
}

type binder struct {
	dest   reflect.Value
	fields map[string]FilterField
}

// predicate is one "field op literal" condition.
type predicate struct {
	field string
	op    Op
	value any
}

func (b binder) bindFilter(filter string) error {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil
	}
	if len(b.fields) == 0 {
		return errors.New("nothing is filterable on this resource")
	}

	root, err := b.parse(filter)
	if err != nil {
		return err
	}
	conds, err := flattenAnd(root, nil)
	if err != nil {
		return err
	}
	for _, cond := range conds {
		p, err := toPredicate(cond)
		if err != nil {
			return err
		}
		if err := b.apply(p); err != nil {
			return err
		}
	}
	return nil
}

func (b binder) parse(filter string) (*exprpb.Expr, error) {
	opts := []cel.EnvOption{cel.CrossTypeNumericComparisons(true)}
	for name, f := range b.fields {
		t, err := celType(f.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		opts = append(opts, cel.Variable(name, t))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, err
	}

	ast, issues := env.Parse(filter)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid filter: %w", issues.Err())
	}
	parsed, err := cel.AstToParsedExpr(ast)
	if err != nil {
		return nil, fmt.Errorf("convert filter: %w", err)
	}
	if parsed.GetExpr() == nil {
		return nil, errors.New("empty expression")
	}
	return parsed.GetExpr(), nil
}

func (b binder) apply(p predicate) error {
	rule, ok := b.fields[p.field]
	if !ok {
		return fmt.Errorf("field %q is not allowed", p.field)
	}
	target, ok := rule.Ops[p.op]
	if !ok {
		return fmt.Errorf("operator %q is not allowed for field %q", p.op, p.field)
	}
	if err := checkKind(rule.Kind, p.op, p.value); err != nil {
		return fmt.Errorf("field %q: %w", p.field, err)
	}

	field := b.dest.FieldByName(target)
	if !field.IsValid() || !field.CanSet() {
		return fmt.Errorf("params struct %s has no settable field %q", b.dest.Type(), target)
	}
	if rule.Setter != nil {
		if field.Kind() == reflect.Ptr && field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		if err := rule.Setter(field, p.value); err != nil {
			return fmt.Errorf("setter for field %q failed: %w", target, err)
		}
		return nil
	}
	if err := assign(field, p.value); err != nil {
		return fmt.Errorf("assign field %q: %w", target, err)
	}
	return nil
}

func celType(kind ValueKind) (*cel.Type, error) {
	switch kind {
	case KindString:
		return cel.StringType, nil
	case KindNumber:
		return cel.DoubleType, nil
	case KindTimestamp:
		return cel.TimestampType, nil
	}
	return nil, fmt.Errorf("unsupported field kind %s", kind)
}

// flattenAnd appends the leaves of a (possibly nested) && chain to out.
func flattenAnd(expr *exprpb.Expr, out []*exprpb.Expr) ([]*exprpb.Expr, error) {
	call := expr.GetCallExpr()
	if call == nil {
		return append(out, expr), nil
	}
	switch call.GetFunction() {
	case "_&&_":
		if call.GetTarget() != nil || len(call.GetArgs()) < 2 {
			return nil, errors.New("malformed && expression")
		}
		var err error
		for _, arg := range call.GetArgs() {
			if out, err = flattenAnd(arg, out); err != nil {
				return nil, err
			}
		}
		return out, nil
	case "_||_", "_?_:_", "!_", "!":
		return nil, fmt.Errorf("%q: %w", call.GetFunction(), errOnlyAnd)
	}
	return append(out, expr), nil
}

func toPredicate(expr *exprpb.Expr) (predicate, error) {
	call := expr.GetCallExpr()
	if call == nil {
		return predicate{}, errors.New("each condition must be a comparison, in, or startsWith")
	}
	fn := call.GetFunction()
	args := call.GetArgs()

	if op, ok := comparisons[fn]; ok {
		if call.GetTarget() != nil || len(args) != 2 {
			return predicate{}, fmt.Errorf("operator %q expects two operands", op)
		}
		return newPredicate(args[0], op, args[1])
	}

	switch fn {
	case "@in", "_in_":
		if call.GetTarget() != nil || len(args) != 2 {
			return predicate{}, errors.New("in expects a field and a list")
		}
		return newPredicate(args[0], OpIN, args[1])
	case "startsWith":
		switch {
		case call.GetTarget() != nil && len(args) == 1:
			return newPredicate(call.GetTarget(), OpSW, args[0])
		case call.GetTarget() == nil && len(args) == 2:
			return newPredicate(args[0], OpSW, args[1])
		}
		return predicate{}, errors.New("startsWith expects a field and one string argument")
	}
	return predicate{}, fmt.Errorf("function %q is not supported", fn)
}

func newPredicate(lhs *exprpb.Expr, op Op, rhs *exprpb.Expr) (predicate, error) {
	ident := lhs.GetIdentExpr()
	if ident == nil {
		return predicate{}, errors.New("left-hand side must be an identifier")
	}
	value, err := literal(rhs)
	if err != nil {
		return predicate{}, err
	}
	if _, isString := value.(string); op == OpSW && !isString {
		return predicate{}, errors.New("startsWith requires a string literal argument")
	}
	return predicate{field: ident.GetName(), op: op, value: value}, nil
}

// literal evaluates a constant, a list of string constants or a
// timestamp('RFC3339') call. Numbers always come back as float64.
func literal(expr *exprpb.Expr) (any, error) {
	if c := expr.GetConstExpr(); c != nil {
		switch v := c.GetConstantKind().(type) {
		case *exprpb.Constant_StringValue:
			return v.StringValue, nil
		case *exprpb.Constant_Int64Value:
			return float64(v.Int64Value), nil
		case *exprpb.Constant_Uint64Value:
			return float64(v.Uint64Value), nil
		case *exprpb.Constant_DoubleValue:
			return v.DoubleValue, nil
		}
		return nil, fmt.Errorf("literal type %T is not supported", c.GetConstantKind())
	}

	if list := expr.GetListExpr(); list != nil {
		out := make([]string, 0, len(list.GetElements()))
		for _, elem := range list.GetElements() {
			s, ok := elem.GetConstExpr().GetConstantKind().(*exprpb.Constant_StringValue)
			if !ok {
				return nil, errListStrings
			}
			out = append(out, s.StringValue)
		}
		return out, nil
	}

	if call := expr.GetCallExpr(); call != nil && call.GetFunction() == "timestamp" {
		if call.GetTarget() != nil || len(call.GetArgs()) != 1 {
			return nil, errors.New("timestamp() expects a single string argument")
		}
		raw := call.GetArgs()[0].GetConstExpr().GetStringValue()
		if raw == "" {
			return nil, errors.New("timestamp() needs a non-empty string literal")
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("timestamp literal %q is not RFC3339", raw)
		}
		return t, nil
	}

	return nil, errNotLiteral
}

func checkKind(kind ValueKind, op Op, value any) error {
	ok := false
	switch kind {
	case KindString:
		if op != OpIN {
			_, ok = value.(string)
			break
		}
		list, isList := value.([]string)
		if !isList {
			return fmt.Errorf("expected list of %s literals", kind)
		}
		if len(list) == 0 {
			return errors.New("list literal must not be empty")
		}
		for _, item := range list {
			if item == "" {
				return errors.New("list literal must not contain empty strings")
			}
		}
		return nil
	case KindNumber:
		_, ok = value.(float64)
	case KindTimestamp:
		_, ok = value.(time.Time)
	default:
		return fmt.Errorf("unsupported field kind %s", kind)
	}
	if !ok {
		return fmt.Errorf("expected %s literal, got %T", kind, value)
	}
	return nil
}

// assign stores value into field, allocating pointers on the way and
// converting to named types where Go allows it.
func assign(field reflect.Value, value any) error {
	for field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		field = field.Elem()
	}
	if field.Kind() == reflect.Interface {
		field.Set(reflect.ValueOf(value))
		return nil
	}

	switch v := value.(type) {
	case float64:
		return assignNumber(field, v)
	case []string:
		if field.Kind() != reflect.Slice || field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("cannot store a string list in %s", field.Type())
		}
		out := reflect.MakeSlice(field.Type(), len(v), len(v))
		for i, s := range v {
			out.Index(i).SetString(s)
		}
		field.Set(out)
		return nil
	}

	rv := reflect.ValueOf(value)
	if !rv.Type().ConvertibleTo(field.Type()) || (rv.Kind() == reflect.String) != (field.Kind() == reflect.String) {
		return fmt.Errorf("cannot store %T in %s", value, field.Type())
	}
	field.Set(rv.Convert(field.Type()))
	return nil
}

func assignNumber(field reflect.Value, v float64) error {
	switch field.Kind() {
	case reflect.Float32, reflect.Float64:
		if field.OverflowFloat(v) {
			return fmt.Errorf("value %v overflows %s", v, field.Type())
		}
		field.SetFloat(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := int64(v)
		if float64(n) != v || field.OverflowInt(n) {
			return fmt.Errorf("value %v does not fit %s", v, field.Type())
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := uint64(v)
		if v < 0 || float64(n) != v || field.OverflowUint(n) {
			return fmt.Errorf("value %v does not fit %s", v, field.Type())
		}
		field.SetUint(n)
	default:
		return fmt.Errorf("cannot store a number in %s", field.Type())
	}
	return nil
}
