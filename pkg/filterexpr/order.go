package filterexpr

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// Ordering is a resolved order_by clause: at most two keys, the second one
// always distinct from the first.
type Ordering struct {
	PrimaryKey    string
	PrimaryDesc   bool
	SecondaryKey  string
	SecondaryDesc bool
}

// ParseOrderBy validates raw ("key [asc|desc], key [asc|desc]") against schema.
// Missing keys come from the schema defaults; a secondary key equal to the
// primary one is replaced by the first other key in name order.
func ParseOrderBy(raw string, schema OrderSchema) (Ordering, error) {
	if err := schema.validate(); err != nil {
		return Ordering{}, err
	}
	ord := Ordering{
		PrimaryKey:    schema.DefaultPrimary,
		PrimaryDesc:   schema.DefaultPrimaryDesc,
		SecondaryKey:  schema.FallbackKey,
		SecondaryDesc: schema.FallbackDesc,
	}

	var terms []orderTerm
	for _, seg := range strings.Split(raw, ",") {
		if strings.TrimSpace(seg) == "" {
			continue
		}
		term, err := parseOrderTerm(seg, schema.Fields)
		if err != nil {
			return Ordering{}, err
		}
		for _, prev := range terms {
			if prev.key == term.key {
				return Ordering{}, fmt.Errorf("duplicate order key %q", term.key)
			}
		}
		terms = append(terms, term)
	}
	if len(terms) > 2 {
		return Ordering{}, errors.New("order_by supports at most two keys")
	}
	if len(terms) > 0 {
		ord.PrimaryKey, ord.PrimaryDesc = terms[0].key, terms[0].desc
	}
	if len(terms) > 1 {
		ord.SecondaryKey, ord.SecondaryDesc = terms[1].key, terms[1].desc
	}

	if ord.SecondaryKey == ord.PrimaryKey {
		keys := slices.Sorted(maps.Keys(schema.Fields))
		idx := slices.IndexFunc(keys, func(k string) bool { return k != ord.PrimaryKey })
		if idx < 0 {
			return Ordering{}, errors.New("order schema requires at least two distinct keys for stable ordering")
		}
		ord.SecondaryKey, ord.SecondaryDesc = keys[idx], false
	}
	return ord, nil
}

func (s OrderSchema) validate() error {
	switch {
	case s.DefaultPrimary == "":
		return errors.New("order schema default primary key required")
	case s.FallbackKey == "":
		return errors.New("order schema fallback key required")
	}
	for _, key := range []string{s.DefaultPrimary, s.FallbackKey} {
		if _, ok := s.Fields[key]; !ok {
			return fmt.Errorf("order key %q missing from schema fields", key)
		}
	}
	return nil
}

type orderTerm struct {
	key  string
	desc bool
}

func parseOrderTerm(seg string, fields map[string]OrderField) (orderTerm, error) {
	parts := strings.Fields(seg)
	if len(parts) > 2 {
		return orderTerm{}, fmt.Errorf("invalid order segment %q", strings.TrimSpace(seg))
	}
	term := orderTerm{key: parts[0]}
	if _, ok := fields[term.key]; !ok {
		return orderTerm{}, fmt.Errorf("field %q cannot be used for ordering", term.key)
	}
	if len(parts) == 2 {
		switch strings.ToLower(parts[1]) {
		case "asc":
		case "desc":
			term.desc = true
		default:
			return orderTerm{}, fmt.Errorf("invalid direction %q for field %q", parts[1], term.key)
		}
	}
	return term, nil
}

// setOrderParams copies ord into the PrimaryKey, PrimaryDesc, SecondaryKey
// and SecondaryDesc fields of binding.
func setOrderParams(binding any, ord Ordering) error {
	target := reflect.ValueOf(binding)
	if target.Kind() != reflect.Ptr || target.IsNil() || target.Elem().Kind() != reflect.Struct {
		return errNilBinding
	}
	target = target.Elem()

	for _, f := range []struct {
		name  string
		value any
	}{
		{"PrimaryKey", ord.PrimaryKey},
		{"PrimaryDesc", ord.PrimaryDesc},
		{"SecondaryKey", ord.SecondaryKey},
		{"SecondaryDesc", ord.SecondaryDesc},
	} {
		field := target.FieldByName(f.name)
		if !field.IsValid() || !field.CanSet() {
			return fmt.Errorf("params struct %s has no settable field %q", target.Type(), f.name)
		}
		if field.Kind() == reflect.Interface {
			field.Set(reflect.ValueOf(f.value))
			continue
		}
		if err := assign(field, f.value); err != nil {
			return fmt.Errorf("order field %q: %w", f.name, err)
		}
	}
	return nil
}
