// Package query provides the chainable query builder and its compiler
package query

import (
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/theory-cloud/tablequery/internal/expr"
	"github.com/theory-cloud/tablequery/pkg/core"
	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
	"github.com/theory-cloud/tablequery/pkg/schema"
)

// Query accumulates a query description and compiles it into a request.
//
// Configuration methods return the same *Query so calls can be chained. A
// call that violates a constraint records an error, leaves the query
// unchanged, and turns every later configuration call into a no-op. The
// error is available from Err and is returned by Compile.
type Query struct {
	builderErr       error
	index            *schema.Index
	scanForward      *bool
	startAfter       map[string]types.AttributeValue
	tableName        string
	hashKey          string
	rangeKey         string
	consumedCapacity core.CapacityLevel
	selections       []string
	keys             []core.Condition
	filters          []core.Condition
	rawFilters       []core.RawFilter
	mode             core.Mode
	limit            int
}

// New creates a query bound to table. The table's key names are copied, so
// the query does not depend on the descriptor afterwards.
func New(table *schema.Table) *Query {
	q := &Query{
		limit:      core.DefaultLimit,
		selections: []string{},
		keys:       []core.Condition{},
		filters:    []core.Condition{},
		rawFilters: []core.RawFilter{},
	}
	if table == nil {
		q.recordBuilderError(tqerrors.InvalidArgument("Query.constructor()", "table must be provided"))
		return q
	}

	q.tableName = table.Name()
	q.hashKey = table.HashKey()
	q.rangeKey = table.RangeKey()
	return q
}

// Select queries by key and projects columns. No columns means all attributes.
func (q *Query) Select(columns ...string) *Query {
	return q.setMode(core.ModeSelect, columns)
}

// Scan traverses the whole table or index. No columns means all attributes.
func (q *Query) Scan(columns ...string) *Query {
	return q.setMode(core.ModeScan, columns)
}

// Count requests only the number of matching items
func (q *Query) Count() *Query {
	return q.setMode(core.ModeCount, nil)
}

func (q *Query) setMode(mode core.Mode, columns []string) *Query {
	if q.checkBuilderError() != nil {
		return q
	}
	if q.mode != core.ModeUnset {
		q.recordBuilderError(tqerrors.InvalidState("Query", "Cannot use more than one mode (select, count, scan) at the same time."))
		return q
	}
	if mode == core.ModeScan && len(q.keys) > 0 {
		q.recordBuilderError(tqerrors.InvalidState("Query.where", `Cannot use "where" clause with scan(), use "filter" instead.`))
		return q
	}

	q.mode = mode
	if len(columns) > 0 {
		q.selections = append([]string(nil), columns...)
	}
	return q
}

// Using binds a secondary index. Key conditions added afterwards target the
// index keys. The optional flag sets traversal order by sort key: true for
// ascending, false for descending.
func (q *Query) Using(index *schema.Index, scanForward ...bool) *Query {
	if q.checkBuilderError() != nil {
		return q
	}
	if index == nil {
		q.recordBuilderError(tqerrors.InvalidArgument("Query.using()", "index must be provided"))
		return q
	}
	if len(scanForward) > 1 {
		q.recordBuilderError(tqerrors.InvalidArgument("Query.using()", "scanForward must be a boolean or undefined"))
		return q
	}

	q.index = index
	q.scanForward = nil
	if len(scanForward) == 1 {
		forward := scanForward[0]
		q.scanForward = &forward
	}
	return q
}

// Limit caps the page size. Non-positive values restore the default of 25;
// 0 counts as unset rather than as a zero-item page.
func (q *Query) Limit(n int) *Query {
	if q.checkBuilderError() != nil {
		return q
	}
	if n > math.MaxInt32 {
		q.recordBuilderError(tqerrors.InvalidArgument("Query.limit()", fmt.Sprintf("limit must not exceed %d", math.MaxInt32)))
		return q
	}
	if n <= 0 {
		n = core.DefaultLimit
	}
	q.limit = n
	return q
}

// StartAfter sets the exclusive start key, normally the LastEvaluatedKey of
// the previous page. A nil or empty key clears it.
func (q *Query) StartAfter(lastEvaluatedKey map[string]types.AttributeValue) *Query {
	if q.checkBuilderError() != nil {
		return q
	}
	q.startAfter = copyKey(lastEvaluatedKey)
	return q
}

// StartAfterCursor is StartAfter for a cursor produced by EncodeCursor
func (q *Query) StartAfterCursor(cursor string) *Query {
	if q.checkBuilderError() != nil {
		return q
	}
	decoded, err := DecodeCursor(cursor)
	if err != nil {
		q.recordBuilderError(tqerrors.InvalidArgument("Query.startAfterCursor()", err.Error()))
		return q
	}
	key, err := decoded.ToAttributeValues()
	if err != nil {
		q.recordBuilderError(tqerrors.InvalidArgument("Query.startAfterCursor()", err.Error()))
		return q
	}
	q.startAfter = key
	return q
}

// WithConsumedCapacity asks the store to report consumed capacity. The level
// defaults to TOTAL; NONE leaves the request unchanged.
func (q *Query) WithConsumedCapacity(level ...core.CapacityLevel) *Query {
	if q.checkBuilderError() != nil {
		return q
	}

	capacity := core.CapacityTotal
	switch len(level) {
	case 0:
	case 1:
		capacity = level[0]
	default:
		q.recordBuilderError(tqerrors.InvalidArgument("Query.withConsumedCapacity()", "capacity type must be INDEXES, TOTAL, or NONE"))
		return q
	}
	if !capacity.Valid() {
		q.recordBuilderError(tqerrors.InvalidArgument("Query.withConsumedCapacity()", "capacity type must be INDEXES, TOTAL, or NONE"))
		return q
	}
	if capacity == core.CapacityNone {
		return q
	}

	q.consumedCapacity = capacity
	return q
}

// Err returns the first error recorded by a configuration call
func (q *Query) Err() error {
	return q.checkBuilderError()
}

// recordBuilderError keeps the first error encountered while chaining
func (q *Query) recordBuilderError(err error) {
	if err != nil && q.builderErr == nil {
		q.builderErr = err
	}
}

// checkBuilderError returns any previously recorded builder error
func (q *Query) checkBuilderError() error {
	return q.builderErr
}

// keySource returns the key schema key conditions apply to and whether it
// belongs to a bound index
func (q *Query) keySource() (core.KeySchema, bool) {
	if q.index != nil {
		return q.index.KeySchema(), true
	}
	return core.KeySchema{PartitionKey: q.hashKey, SortKey: q.rangeKey}, false
}

// Compile renders the query into its wire request. It does not modify the
// query, so it can be called again, for example after StartAfter.
func (q *Query) Compile() (*core.CompiledQuery, error) {
	if err := q.checkBuilderError(); err != nil {
		return nil, err
	}

	builder := expr.NewBuilder()
	for _, cond := range q.keys {
		if err := builder.AddKeyCondition(cond); err != nil {
			return nil, fmt.Errorf("compile key condition: %w", err)
		}
	}
	for _, cond := range q.filters {
		if err := builder.AddFilterCondition(cond); err != nil {
			return nil, fmt.Errorf("compile filter: %w", err)
		}
	}
	for _, raw := range q.rawFilters {
		builder.AddRawFilter(raw)
	}

	compiled := &core.CompiledQuery{
		TableName:              q.tableName,
		Mode:                   q.mode,
		Limit:                  int32(q.limit), //nolint:gosec // Limit rejects values above MaxInt32
		ExclusiveStartKey:      copyKey(q.startAfter),
		ReturnConsumedCapacity: string(q.consumedCapacity),
	}

	switch q.mode {
	case core.ModeCount:
		compiled.Select = string(types.SelectCount)
	case core.ModeSelect, core.ModeScan, core.ModeUnset:
		builder.AddProjection(q.selections...)
	}

	components := builder.Build()
	compiled.ProjectionExpression = components.ProjectionExpression
	compiled.KeyConditionExpression = components.KeyConditionExpression
	compiled.FilterExpression = components.FilterExpression
	compiled.ExpressionAttributeNames = components.ExpressionAttributeNames
	compiled.ExpressionAttributeValues = components.ExpressionAttributeValues

	if q.index != nil {
		compiled.IndexName = q.index.Name()
	}
	if q.scanForward != nil {
		forward := *q.scanForward
		compiled.ScanIndexForward = &forward
	}

	return compiled, nil
}

func copyKey(key map[string]types.AttributeValue) map[string]types.AttributeValue {
	if len(key) == 0 {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(key))
	for k, v := range key {
		out[k] = v
	}
	return out
}
