// Package querydef loads declarative query definitions from YAML and replays
// them onto the fluent query builder.
package querydef

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/theory-cloud/tablequery/pkg/core"
	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
	"github.com/theory-cloud/tablequery/pkg/query"
	"github.com/theory-cloud/tablequery/pkg/schema"
)

// KeyDef describes a table or index key schema
type KeyDef struct {
	Name     string `yaml:"name" validate:"required"`
	HashKey  string `yaml:"hash_key" validate:"required"`
	RangeKey string `yaml:"range_key,omitempty"`
}

// WhereDef holds the key conditions of a select or count definition
type WhereDef struct {
	Hash  any       `yaml:"hash" validate:"required"`
	Range *RangeDef `yaml:"range,omitempty"`
}

// RangeDef is a single range key condition. Between uses Start and End,
// every other operation uses Value.
type RangeDef struct {
	Value any    `yaml:"value,omitempty"`
	Start any    `yaml:"start,omitempty"`
	End   any    `yaml:"end,omitempty"`
	Op    string `yaml:"op" validate:"required,oneof=eq begins_with gt gtEq lt ltEq between"`
}

// FilterDef is a single structured filter condition
type FilterDef struct {
	Value  any    `yaml:"value,omitempty"`
	Start  any    `yaml:"start,omitempty"`
	End    any    `yaml:"end,omitempty"`
	Op     string `yaml:"op" validate:"required,oneof=eq notEq gt gtEq lt ltEq begins_with contains attribute_exists attribute_not_exists attribute_type between size"`
	Key    string `yaml:"key" validate:"required"`
	Type   string `yaml:"type,omitempty" validate:"omitempty,oneof=S SS N NS B BS BOOL NULL L M"`
	SizeOp string `yaml:"size_op,omitempty"`
}

// RawDef is a caller-authored filter fragment with its placeholders
type RawDef struct {
	Names     map[string]string `yaml:"names,omitempty"`
	Values    map[string]any    `yaml:"values,omitempty"`
	Condition string            `yaml:"condition" validate:"required"`
}

// Definition is the declarative form of a query
type Definition struct {
	Index            *KeyDef     `yaml:"index,omitempty"`
	ScanForward      *bool       `yaml:"scan_forward,omitempty"`
	Where            *WhereDef   `yaml:"where,omitempty"`
	Table            KeyDef      `yaml:"table"`
	Mode             string      `yaml:"mode" validate:"required,oneof=select scan count"`
	StartAfter       string      `yaml:"start_after,omitempty"`
	ConsumedCapacity string      `yaml:"consumed_capacity,omitempty" validate:"omitempty,oneof=INDEXES TOTAL NONE"`
	Columns          []string    `yaml:"columns,omitempty" validate:"dive,required"`
	Filters          []FilterDef `yaml:"filters,omitempty" validate:"dive"`
	Raw              []RawDef    `yaml:"raw,omitempty" validate:"dive"`
	Limit            int         `yaml:"limit,omitempty" validate:"gte=0"`
}

var validate = validator.New()

// Load decodes a YAML definition from r and validates it. Unknown keys are rejected.
func Load(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: query definition is empty", tqerrors.ErrInvalidArgument)
		}
		return nil, fmt.Errorf("%w: failed to decode query definition: %v", tqerrors.ErrInvalidArgument, err)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads and validates the definition stored at path
func LoadFile(path string) (*Definition, error) {
	f, err := os.Open(path) // #nosec G304 -- definitions are read from operator supplied paths
	if err != nil {
		return nil, fmt.Errorf("failed to open query definition: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Validate runs the structural tag checks followed by cross-field checks
func (d *Definition) Validate() error {
	if err := validate.Struct(d); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			msgs := make([]string, 0, len(validationErrors))
			for _, e := range validationErrors {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed on '%s'", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("%w: invalid query definition: %s", tqerrors.ErrInvalidArgument, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: invalid query definition: %v", tqerrors.ErrInvalidArgument, err)
	}

	return d.validateSemantics()
}

func (d *Definition) validateSemantics() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: invalid query definition: %s", tqerrors.ErrInvalidArgument, fmt.Sprintf(format, args...))
	}

	if d.ScanForward != nil && d.Index == nil {
		return invalid("scan_forward requires index")
	}
	if d.Mode == core.ModeCount.String() && len(d.Columns) > 0 {
		return invalid("columns cannot be combined with count mode")
	}
	if d.Where != nil && d.Where.Range != nil {
		if err := checkOperands("where.range", d.Where.Range.Op, d.Where.Range.Value, d.Where.Range.Start, d.Where.Range.End); err != nil {
			return invalid("%s", err)
		}
	}
	for i, f := range d.Filters {
		label := fmt.Sprintf("filters[%d]", i)
		if err := checkOperands(label, f.Op, f.Value, f.Start, f.End); err != nil {
			return invalid("%s", err)
		}
		if f.Op == string(core.KindAttributeType) && f.Type == "" {
			return invalid("%s: attribute_type requires type", label)
		}
		if f.Op == string(core.KindSize) && f.SizeOp == "" {
			return invalid("%s: size requires size_op", label)
		}
	}
	return nil
}

func checkOperands(label, op string, value, start, end any) error {
	switch core.ConditionKind(op) {
	case core.KindBetween:
		if start == nil || end == nil {
			return fmt.Errorf("%s: between requires start and end", label)
		}
	case core.KindAttributeExists, core.KindAttributeNotExists, core.KindAttributeType:
	default:
		if value == nil {
			return fmt.Errorf("%s: %s requires value", label, op)
		}
	}
	return nil
}

// Build constructs the table and index descriptors and replays the
// definition onto a new query. The first builder error is returned.
func (d *Definition) Build() (*query.Query, error) {
	table, err := schema.NewTable(d.Table.Name, d.Table.HashKey, optionalRangeKey(d.Table.RangeKey)...)
	if err != nil {
		return nil, err
	}
	q := query.New(table)

	if d.Index != nil {
		index, err := schema.NewIndex(d.Index.Name, d.Index.HashKey, optionalRangeKey(d.Index.RangeKey)...)
		if err != nil {
			return nil, err
		}
		if d.ScanForward != nil {
			q.Using(index, *d.ScanForward)
		} else {
			q.Using(index)
		}
	}

	switch d.Mode {
	case core.ModeSelect.String():
		q.Select(d.Columns...)
	case core.ModeScan.String():
		q.Scan(d.Columns...)
	case core.ModeCount.String():
		q.Count()
	}

	if d.Where != nil {
		q.Where().Hash().Eq(d.Where.Hash)
		if d.Where.Range != nil {
			applyRange(q, d.Where.Range)
		}
	}

	for i := range d.Filters {
		applyFilter(q, &d.Filters[i])
	}
	for _, raw := range d.Raw {
		q.Filter().Raw(raw.Condition, core.Replacements{Names: raw.Names, Values: raw.Values})
	}

	if d.Limit > 0 {
		q.Limit(d.Limit)
	}
	if d.StartAfter != "" {
		q.StartAfterCursor(d.StartAfter)
	}
	if d.ConsumedCapacity != "" {
		q.WithConsumedCapacity(core.CapacityLevel(d.ConsumedCapacity))
	}

	if err := q.Err(); err != nil {
		return nil, err
	}
	return q, nil
}

func applyRange(q *query.Query, r *RangeDef) {
	rng := q.Where().Range()
	switch core.ConditionKind(r.Op) {
	case core.KindEq:
		rng.Eq(r.Value)
	case core.KindBeginsWith:
		rng.BeginsWith(r.Value)
	case core.KindGt:
		rng.Gt(r.Value)
	case core.KindGtEq:
		rng.GtEq(r.Value)
	case core.KindLt:
		rng.Lt(r.Value)
	case core.KindLtEq:
		rng.LtEq(r.Value)
	case core.KindBetween:
		rng.Between(r.Start, r.End)
	}
}

func applyFilter(q *query.Query, f *FilterDef) {
	filter := q.Filter()
	switch core.ConditionKind(f.Op) {
	case core.KindEq:
		filter.Eq(f.Key, f.Value)
	case core.KindNotEq:
		filter.NotEq(f.Key, f.Value)
	case core.KindGt:
		filter.Gt(f.Key, f.Value)
	case core.KindGtEq:
		filter.GtEq(f.Key, f.Value)
	case core.KindLt:
		filter.Lt(f.Key, f.Value)
	case core.KindLtEq:
		filter.LtEq(f.Key, f.Value)
	case core.KindBeginsWith:
		filter.BeginsWith(f.Key, f.Value)
	case core.KindContains:
		filter.Contains(f.Key, f.Value)
	case core.KindAttributeExists:
		filter.AttributeExists(f.Key)
	case core.KindAttributeNotExists:
		filter.AttributeNotExists(f.Key)
	case core.KindAttributeType:
		filter.AttributeType(f.Key, core.AttributeType(f.Type))
	case core.KindBetween:
		filter.Between(f.Key, f.Start, f.End)
	case core.KindSize:
		filter.Size(f.Key, core.Operator(f.SizeOp), f.Value)
	}
}

func optionalRangeKey(rangeKey string) []string {
	if rangeKey == "" {
		return nil
	}
	return []string{rangeKey}
}
