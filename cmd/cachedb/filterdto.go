package main

import (
	"fmt"

	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/planner"
)

// filterDTO is the JSON shape --filter / a query request's "filter"
// field is parsed from: a leaf compares one named field, an "and" node
// combines children. Disjunction is deliberately not exposed here,
// mirroring the planner's own rejection of Or.
type filterDTO struct {
	Kind     string        `json:"kind"` // "and" | "cmp"
	Field    string        `json:"field,omitempty"`
	Op       string        `json:"op,omitempty"` // eq|ne|lt|lte|gt|gte|contains|any
	Value    interface{}   `json:"value,omitempty"`
	Values   []interface{} `json:"values,omitempty"`
	Children []filterDTO   `json:"children,omitempty"`
}

var compareOps = map[string]planner.CompareOp{
	"eq": planner.Eq, "ne": planner.Ne,
	"lt": planner.Lt, "lte": planner.Lte,
	"gt": planner.Gt, "gte": planner.Gte,
	"contains": planner.Contains, "any": planner.MatchesAny,
}

// toExpr resolves a filterDTO against schema's field names and types
// into a planner.Expr, so a query request can name fields by their
// schema name instead of a positional index.
func toExpr(schema cachetypes.Schema, dto filterDTO) (planner.Expr, error) {
	switch dto.Kind {
	case "and":
		if len(dto.Children) == 0 {
			return planner.Expr{}, fmt.Errorf("and node requires at least one child")
		}
		children := make([]planner.Expr, 0, len(dto.Children))
		for _, c := range dto.Children {
			e, err := toExpr(schema, c)
			if err != nil {
				return planner.Expr{}, err
			}
			children = append(children, e)
		}
		return planner.And(children...), nil
	case "cmp":
		pos := schema.FieldPosition(dto.Field)
		if pos < 0 {
			return planner.Expr{}, fmt.Errorf("unknown field %q", dto.Field)
		}
		op, ok := compareOps[dto.Op]
		if !ok {
			return planner.Expr{}, fmt.Errorf("unknown comparison operator %q", dto.Op)
		}
		fieldType := schema.Fields[pos].Type
		if op == planner.MatchesAny {
			values := make([]cachetypes.Field, 0, len(dto.Values))
			for _, v := range dto.Values {
				f, err := toField(fieldType, v)
				if err != nil {
					return planner.Expr{}, err
				}
				values = append(values, f)
			}
			return planner.MatchesAnyOf(pos, values), nil
		}
		value, err := toField(fieldType, dto.Value)
		if err != nil {
			return planner.Expr{}, err
		}
		return planner.Comparison(pos, op, value), nil
	default:
		return planner.Expr{}, fmt.Errorf("unknown filter kind %q", dto.Kind)
	}
}

// toField converts a decoded JSON value into a cachetypes.Field of the
// given declared type. Only the field types a JSON query can express
// unambiguously are supported; anything else (Decimal, I128/U128,
// Point, Date/Timestamp/Duration, Binary, JSON) requires the library
// API directly rather than the CLI's filter syntax.
func toField(fieldType cachetypes.FieldType, raw interface{}) (cachetypes.Field, error) {
	switch fieldType {
	case cachetypes.Int:
		n, ok := raw.(float64)
		if !ok {
			return cachetypes.Field{}, fmt.Errorf("expected a number for Int field, got %T", raw)
		}
		return cachetypes.NewInt(int64(n)), nil
	case cachetypes.UInt:
		n, ok := raw.(float64)
		if !ok {
			return cachetypes.Field{}, fmt.Errorf("expected a number for UInt field, got %T", raw)
		}
		return cachetypes.NewUInt(uint64(n)), nil
	case cachetypes.Float:
		n, ok := raw.(float64)
		if !ok {
			return cachetypes.Field{}, fmt.Errorf("expected a number for Float field, got %T", raw)
		}
		return cachetypes.NewFloat(n), nil
	case cachetypes.Boolean:
		b, ok := raw.(bool)
		if !ok {
			return cachetypes.Field{}, fmt.Errorf("expected a boolean for Boolean field, got %T", raw)
		}
		return cachetypes.NewBool(b), nil
	case cachetypes.String:
		s, ok := raw.(string)
		if !ok {
			return cachetypes.Field{}, fmt.Errorf("expected a string for String field, got %T", raw)
		}
		return cachetypes.NewString(s), nil
	case cachetypes.Text:
		s, ok := raw.(string)
		if !ok {
			return cachetypes.Field{}, fmt.Errorf("expected a string for Text field, got %T", raw)
		}
		return cachetypes.NewText(s), nil
	default:
		return cachetypes.Field{}, fmt.Errorf("CLI filters do not support field type %s", fieldType)
	}
}

// fieldString renders a Field for human-readable CLI output.
func fieldString(f cachetypes.Field) string {
	if f.IsNull() {
		return "<null>"
	}
	switch f.Type {
	case cachetypes.Int:
		v, _ := f.AsInt()
		return fmt.Sprintf("%d", v)
	case cachetypes.UInt:
		v, _ := f.AsUInt()
		return fmt.Sprintf("%d", v)
	case cachetypes.Float:
		v, _ := f.AsFloat()
		return fmt.Sprintf("%g", v)
	case cachetypes.Boolean:
		v, _ := f.AsBool()
		return fmt.Sprintf("%t", v)
	case cachetypes.String, cachetypes.Text:
		v, _ := f.AsString()
		return v
	default:
		return fmt.Sprintf("<%s>", f.Type)
	}
}
