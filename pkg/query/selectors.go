package query

import (
	"github.com/theory-cloud/tablequery/pkg/core"
	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
)

// WhereSelector adds key conditions
type WhereSelector struct {
	q *Query
}

// HashSelector adds the partition key condition
type HashSelector struct {
	q *Query
}

// RangeSelector adds sort key conditions
type RangeSelector struct {
	q *Query
}

// Where starts a key condition on the active key source: the bound index if
// there is one, otherwise the table. Key conditions cannot be combined with
// Scan.
func (q *Query) Where() *WhereSelector {
	if q.checkBuilderError() == nil && q.mode == core.ModeScan {
		q.recordBuilderError(tqerrors.InvalidState("Query.where", `Cannot use "where" clause with scan(), use "filter" instead.`))
	}
	return &WhereSelector{q: q}
}

// Hash selects the partition key
func (w *WhereSelector) Hash() *HashSelector { return &HashSelector{q: w.q} }

// Range selects the sort key
func (w *WhereSelector) Range() *RangeSelector { return &RangeSelector{q: w.q} }

// Eq matches the partition key exactly
func (h *HashSelector) Eq(value any) *Query {
	q := h.q
	if q.checkBuilderError() != nil {
		return q
	}
	keys, onIndex := q.keySource()
	if keys.PartitionKey == "" {
		q.recordBuilderError(tqerrors.InvalidArgument("Query.where.hash", hashKeyMissing(onIndex)))
		return q
	}
	q.keys = append(q.keys, core.Condition{Key: keys.PartitionKey, Kind: core.KindHashEq, Value: core.Scalar{Value: value}})
	return q
}

func (r *RangeSelector) Eq(value any) *Query {
	return r.push(core.KindEq, core.Scalar{Value: value})
}

func (r *RangeSelector) BeginsWith(prefix any) *Query {
	return r.push(core.KindBeginsWith, core.Scalar{Value: prefix})
}

func (r *RangeSelector) Gt(value any) *Query {
	return r.push(core.KindGt, core.Scalar{Value: value})
}

func (r *RangeSelector) GtEq(value any) *Query {
	return r.push(core.KindGtEq, core.Scalar{Value: value})
}

func (r *RangeSelector) Lt(value any) *Query {
	return r.push(core.KindLt, core.Scalar{Value: value})
}

func (r *RangeSelector) LtEq(value any) *Query {
	return r.push(core.KindLtEq, core.Scalar{Value: value})
}

// Between matches sort keys in [start, end]
func (r *RangeSelector) Between(start, end any) *Query {
	return r.push(core.KindBetween, core.Range{Start: start, End: end})
}

func (r *RangeSelector) push(kind core.ConditionKind, value core.ConditionValue) *Query {
	q := r.q
	if q.checkBuilderError() != nil {
		return q
	}
	keys, onIndex := q.keySource()
	if !keys.HasSortKey() {
		q.recordBuilderError(tqerrors.InvalidArgument("Query.where.range", rangeKeyMissing(onIndex)))
		return q
	}
	q.keys = append(q.keys, core.Condition{Key: keys.SortKey, Kind: kind, Value: value})
	return q
}

func hashKeyMissing(onIndex bool) string {
	if onIndex {
		return "Provided Index does not have a hashKey"
	}
	return "Table does not have a hashKey"
}

func rangeKeyMissing(onIndex bool) string {
	if onIndex {
		return "Provided Index does not have a rangeKey"
	}
	return "Table does not have a rangeKey"
}

// FilterSelector adds filter conditions. Filters are evaluated by the store
// after items are read, so they narrow results but not the scanned count.
type FilterSelector struct {
	q *Query
}

// Filter starts a filter condition
func (q *Query) Filter() *FilterSelector {
	return &FilterSelector{q: q}
}

func (f *FilterSelector) Eq(key string, value any) *Query {
	return f.push(key, core.KindEq, core.Scalar{Value: value})
}

func (f *FilterSelector) NotEq(key string, value any) *Query {
	return f.push(key, core.KindNotEq, core.Scalar{Value: value})
}

func (f *FilterSelector) Gt(key string, value any) *Query {
	return f.push(key, core.KindGt, core.Scalar{Value: value})
}

func (f *FilterSelector) GtEq(key string, value any) *Query {
	return f.push(key, core.KindGtEq, core.Scalar{Value: value})
}

func (f *FilterSelector) Lt(key string, value any) *Query {
	return f.push(key, core.KindLt, core.Scalar{Value: value})
}

func (f *FilterSelector) LtEq(key string, value any) *Query {
	return f.push(key, core.KindLtEq, core.Scalar{Value: value})
}

func (f *FilterSelector) BeginsWith(key string, prefix any) *Query {
	return f.push(key, core.KindBeginsWith, core.Scalar{Value: prefix})
}

// Contains matches a substring of a string or an element of a set or list
func (f *FilterSelector) Contains(key string, value any) *Query {
	return f.push(key, core.KindContains, core.Scalar{Value: value})
}

func (f *FilterSelector) AttributeExists(key string) *Query {
	return f.push(key, core.KindAttributeExists, nil)
}

func (f *FilterSelector) AttributeNotExists(key string) *Query {
	return f.push(key, core.KindAttributeNotExists, nil)
}

// AttributeType matches items whose attribute is stored with the given type
func (f *FilterSelector) AttributeType(key string, typ core.AttributeType) *Query {
	if !typ.Valid() && f.q.checkBuilderError() == nil {
		f.q.recordBuilderError(tqerrors.InvalidArgument("Query.filter.attributeType()", "unknown attribute type "+string(typ)))
		return f.q
	}
	return f.push(key, core.KindAttributeType, core.TypeTag{Type: typ})
}

func (f *FilterSelector) Between(key string, start, end any) *Query {
	return f.push(key, core.KindBetween, core.Range{Start: start, End: end})
}

// Size compares the length of a string, binary, set, list or map attribute
func (f *FilterSelector) Size(key string, op core.Operator, value any) *Query {
	if !op.Valid() && f.q.checkBuilderError() == nil {
		f.q.recordBuilderError(tqerrors.InvalidArgument("Query.filter.size()", "unknown operator "+string(op)))
		return f.q
	}
	return f.push(key, core.KindSize, core.SizeComparison{Op: op, Value: value})
}

// Raw appends a pre-formed condition. It is wrapped in parentheses and its
// placeholders are merged without renaming.
func (f *FilterSelector) Raw(condition string, replacements core.Replacements) *Query {
	q := f.q
	if q.checkBuilderError() != nil {
		return q
	}
	if condition == "" {
		q.recordBuilderError(tqerrors.InvalidArgument("Query.filter.raw()", "condition must be provided"))
		return q
	}
	q.rawFilters = append(q.rawFilters, core.RawFilter{
		Condition:    condition,
		Replacements: copyReplacements(replacements),
	})
	return q
}

func (f *FilterSelector) push(key string, kind core.ConditionKind, value core.ConditionValue) *Query {
	q := f.q
	if q.checkBuilderError() != nil {
		return q
	}
	if key == "" {
		q.recordBuilderError(tqerrors.InvalidArgument("Query.filter."+string(kind)+"()", "key must be provided"))
		return q
	}
	q.filters = append(q.filters, core.Condition{Key: key, Kind: kind, Value: value})
	return q
}

func copyReplacements(r core.Replacements) core.Replacements {
	out := core.Replacements{}
	if len(r.Names) > 0 {
		out.Names = make(map[string]string, len(r.Names))
		for k, v := range r.Names {
			out.Names[k] = v
		}
	}
	if len(r.Values) > 0 {
		out.Values = make(map[string]any, len(r.Values))
		for k, v := range r.Values {
			out.Values[k] = v
		}
	}
	return out
}
