// Package schema holds the immutable key-shape descriptors queries are built against
package schema

import (
	"github.com/theory-cloud/tablequery/pkg/core"
	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
)

// Table describes a table's name and primary key shape
type Table struct {
	name string
	keys core.KeySchema
}

// NewTable validates and freezes a table descriptor.
// rangeKey is optional; when given it must be a single non-empty name.
func NewTable(name, hashKey string, rangeKey ...string) (*Table, error) {
	if name == "" {
		return nil, tqerrors.InvalidArgument("Table.constructor()", "name must be provided")
	}
	if hashKey == "" {
		return nil, tqerrors.InvalidArgument("Table.constructor()", "hashKey must be provided")
	}
	sortKey, ok := optionalRangeKey(rangeKey)
	if !ok {
		return nil, tqerrors.InvalidArgument("Table.constructor()", "rangeKey is invalid")
	}

	return &Table{
		name: name,
		keys: core.KeySchema{PartitionKey: hashKey, SortKey: sortKey},
	}, nil
}

// MustTable is like NewTable but panics on invalid input.
// Intended for package-level descriptor variables.
func MustTable(name, hashKey string, rangeKey ...string) *Table {
	t, err := NewTable(name, hashKey, rangeKey...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the table name
func (t *Table) Name() string { return t.name }

// HashKey returns the partition key attribute name
func (t *Table) HashKey() string { return t.keys.PartitionKey }

// RangeKey returns the sort key attribute name, or "" when the table has none
func (t *Table) RangeKey() string { return t.keys.SortKey }

// HasRangeKey reports whether the table defines a sort key
func (t *Table) HasRangeKey() bool { return t.keys.HasSortKey() }

// KeySchema returns the key shape
func (t *Table) KeySchema() core.KeySchema { return t.keys }

func optionalRangeKey(rangeKey []string) (string, bool) {
	switch len(rangeKey) {
	case 0:
		return "", true
	case 1:
		return rangeKey[0], rangeKey[0] != ""
	default:
		return "", false
	}
}
