package query

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/theory-cloud/tablequery/pkg/core"
	"github.com/theory-cloud/tablequery/pkg/schema"
)

// State is a snapshot of a query's accumulated configuration.
// Slices and maps are copies; changing them does not affect the query.
type State struct {
	Index            *schema.Index
	ScanForward      *bool
	StartAfter       map[string]types.AttributeValue
	TableName        string
	HashKey          string
	RangeKey         string
	ConsumedCapacity core.CapacityLevel
	Selections       []string
	Keys             []core.Condition
	Filters          []core.Condition
	RawFilters       []core.RawFilter
	Mode             core.Mode
	Limit            int
	Count            bool
}

// State returns a snapshot of the query
func (q *Query) State() State {
	state := State{
		Index:            q.index,
		StartAfter:       copyKey(q.startAfter),
		TableName:        q.tableName,
		HashKey:          q.hashKey,
		RangeKey:         q.rangeKey,
		ConsumedCapacity: q.consumedCapacity,
		Selections:       append([]string{}, q.selections...),
		Keys:             append([]core.Condition{}, q.keys...),
		Filters:          append([]core.Condition{}, q.filters...),
		RawFilters:       make([]core.RawFilter, 0, len(q.rawFilters)),
		Mode:             q.mode,
		Limit:            q.limit,
		Count:            q.mode == core.ModeCount,
	}
	if q.scanForward != nil {
		forward := *q.scanForward
		state.ScanForward = &forward
	}
	for _, raw := range q.rawFilters {
		state.RawFilters = append(state.RawFilters, core.RawFilter{
			Condition:    raw.Condition,
			Replacements: copyReplacements(raw.Replacements),
		})
	}
	return state
}
