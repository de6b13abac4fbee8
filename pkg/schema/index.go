package schema

import (
	"github.com/theory-cloud/tablequery/pkg/core"
	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
)

// Index describes a secondary index. Binding one to a query redirects key
// conditions to the index keys and sets IndexName on the request.
type Index struct {
	name string
	keys core.KeySchema
}

// NewIndex validates and freezes an index descriptor
func NewIndex(name, hashKey string, rangeKey ...string) (*Index, error) {
	if name == "" {
		return nil, tqerrors.InvalidArgument("Index.constructor()", "name must be provided")
	}
	if hashKey == "" {
		return nil, tqerrors.InvalidArgument("Index.constructor()", "hashKey must be provided")
	}
	sortKey, ok := optionalRangeKey(rangeKey)
	if !ok {
		return nil, tqerrors.InvalidArgument("Index.constructor()", "rangeKey is invalid")
	}

	return &Index{
		name: name,
		keys: core.KeySchema{PartitionKey: hashKey, SortKey: sortKey},
	}, nil
}

// MustIndex is like NewIndex but panics on invalid input
func MustIndex(name, hashKey string, rangeKey ...string) *Index {
	idx, err := NewIndex(name, hashKey, rangeKey...)
	if err != nil {
		panic(err)
	}
	return idx
}

func (i *Index) Name() string              { return i.name }
func (i *Index) HashKey() string           { return i.keys.PartitionKey }
func (i *Index) RangeKey() string          { return i.keys.SortKey }
func (i *Index) HasRangeKey() bool         { return i.keys.HasSortKey() }
func (i *Index) KeySchema() core.KeySchema { return i.keys }
