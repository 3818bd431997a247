// Package planner selects an index plan for a filter/order/limit query
// against a cache's registered secondary indexes. It never
// touches storage — Select is a pure function of the query and the
// cache's index definitions — so it is exercised with table-driven
// tests.
package planner

import "github.com/cuemby/cachedb/pkg/cachetypes"

// CompareOp is the comparison operator of a Comparison leaf.
type CompareOp uint8

const (
	Eq CompareOp = iota
	Ne
	Lt
	Lte
	Gt
	Gte
	Contains   // full-text substring/phrase match; only valid against a FullText index
	MatchesAny // field ∈ values
)

func (op CompareOp) isRange() bool {
	return op == Lt || op == Lte || op == Gt || op == Gte
}

// ExprKind tags the variant carried by an Expr.
type ExprKind uint8

const (
	ExprComparison ExprKind = iota
	ExprAnd
	// ExprOr exists only so the planner can detect and reject a
	// disjunction at the root or anywhere in the tree: Or is always
	// rejected at plan time, and callers must union client-side instead.
	ExprOr
)

// Expr is a query filter expression: a Comparison leaf, an And of
// sub-expressions, or an Or (always rejected by Select).
type Expr struct {
	Kind ExprKind

	FieldPosition int
	Op            CompareOp
	Value         cachetypes.Field   // Eq, Ne, Lt, Lte, Gt, Gte, Contains
	Values        []cachetypes.Field // MatchesAny

	Children []Expr // And, Or
}

func Comparison(fieldPosition int, op CompareOp, value cachetypes.Field) Expr {
	return Expr{Kind: ExprComparison, FieldPosition: fieldPosition, Op: op, Value: value}
}

func MatchesAnyOf(fieldPosition int, values []cachetypes.Field) Expr {
	return Expr{Kind: ExprComparison, FieldPosition: fieldPosition, Op: MatchesAny, Values: values}
}

func And(children ...Expr) Expr { return Expr{Kind: ExprAnd, Children: children} }
func Or(children ...Expr) Expr  { return Expr{Kind: ExprOr, Children: children} }

// SkipKind distinguishes the two Skip variants.
type SkipKind uint8

const (
	SkipNone SkipKind = iota
	SkipAfter
	SkipOffset
)

// Skip resumes a paginated scan: either after a specific primary key
// or at a fixed row offset.
type Skip struct {
	Kind   SkipKind
	After  []byte
	Offset uint64
}

// OrderTerm is one (field, direction) pair of Query.OrderBy.
type OrderTerm struct {
	FieldPosition int
	Direction     cachetypes.Direction
}

// Query is the planner's input: an optional filter tree, an ordering,
// an optional limit, and a skip position.
type Query struct {
	Filter  *Expr
	OrderBy []OrderTerm
	Limit   *uint64
	Skip    Skip
}

// NamedIndex pairs a registered secondary index with the identifier its
// IndexScan results reference.
type NamedIndex struct {
	ID  string
	Def cachetypes.IndexDefinition
}
