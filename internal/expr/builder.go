package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/theory-cloud/tablequery/pkg/core"
)

// Builder compiles key conditions, filters and projections into DynamoDB
// expressions together with their placeholder maps.
//
// A Builder is single use: add everything, then call Build.
type Builder struct {
	names            map[string]string
	values           map[string]any
	usedValueRefs    map[string]bool
	keyConditions    []string
	filterConditions []string
	rawConditions    []string
	projections      []string
}

// NewBuilder creates an empty expression builder
func NewBuilder() *Builder {
	return &Builder{
		names:         make(map[string]string),
		values:        make(map[string]any),
		usedValueRefs: make(map[string]bool),
	}
}

// Substitute rewrites cond.Key to a # placeholder when the attribute name is
// reserved or starts with an underscore. Already substituted conditions are
// returned unchanged.
func Substitute(cond core.Condition) core.Condition {
	if cond.SubstitutedName != "" || !NeedsPlaceholder(cond.Key) {
		return cond
	}
	cond.SubstitutedName = cond.Key
	cond.Key = "#" + cond.Key
	return cond
}

// valueRef is the value placeholder base for an attribute reference
func valueRef(key string) string {
	return ":" + strings.Trim(key, "#")
}

// AddKeyCondition renders a key condition
func (b *Builder) AddKeyCondition(cond core.Condition) error {
	if !cond.Kind.KeyKind() {
		return fmt.Errorf("unsupported key condition %q on %s", cond.Kind, cond.Key)
	}
	cond = Substitute(cond)
	ref := valueRef(cond.Key)
	b.usedValueRefs[ref] = true

	expr, err := b.render(cond, ref)
	if err != nil {
		return err
	}
	b.keyConditions = append(b.keyConditions, expr)
	b.addName(cond)
	return nil
}

// AddFilterCondition renders a filter condition. Repeated filters on the same
// attribute get distinct value placeholders (:a, :a_1, :a_2, ...).
func (b *Builder) AddFilterCondition(cond core.Condition) error {
	if cond.Kind == core.KindHashEq {
		return fmt.Errorf("unsupported filter condition %q on %s", cond.Kind, cond.Key)
	}
	cond = Substitute(cond)
	ref := b.reserveValueRef(valueRef(cond.Key))

	expr, err := b.render(cond, ref)
	if err != nil {
		return err
	}
	b.filterConditions = append(b.filterConditions, expr)
	b.addName(cond)
	return nil
}

// AddRawFilter appends a caller-formed fragment. Its placeholders are merged
// as given; keeping them unique is up to the caller.
func (b *Builder) AddRawFilter(raw core.RawFilter) {
	if raw.Condition == "" {
		return
	}
	b.rawConditions = append(b.rawConditions, "("+raw.Condition+")")
	for placeholder, name := range raw.Replacements.Names {
		b.names[placeholder] = name
	}
	for placeholder, value := range raw.Replacements.Values {
		b.values[placeholder] = value
		b.usedValueRefs[placeholder] = true
	}
}

// AddProjection adds columns to the projection expression
func (b *Builder) AddProjection(columns ...string) {
	for _, col := range columns {
		name := strings.TrimSpace(col)
		if NeedsPlaceholder(name) {
			placeholder := "#" + name
			b.names[placeholder] = name
			b.projections = append(b.projections, placeholder)
			continue
		}
		b.projections = append(b.projections, col)
	}
}

// Build joins everything added so far. Empty expressions are "" and empty
// maps are nil.
func (b *Builder) Build() ExpressionComponents {
	components := ExpressionComponents{}

	if len(b.keyConditions) > 0 {
		components.KeyConditionExpression = strings.Join(b.keyConditions, " and ")
	}

	filters := make([]string, 0, len(b.filterConditions)+len(b.rawConditions))
	filters = append(filters, b.filterConditions...)
	filters = append(filters, b.rawConditions...)
	if len(filters) > 0 {
		components.FilterExpression = strings.Join(filters, " and ")
	}

	if len(b.projections) > 0 {
		components.ProjectionExpression = strings.Join(b.projections, ", ")
	}

	if len(b.names) > 0 {
		components.ExpressionAttributeNames = make(map[string]string, len(b.names))
		for k, v := range b.names {
			components.ExpressionAttributeNames[k] = v
		}
	}
	if len(b.values) > 0 {
		components.ExpressionAttributeValues = make(map[string]any, len(b.values))
		for k, v := range b.values {
			components.ExpressionAttributeValues[k] = v
		}
	}

	return components
}

// reserveValueRef returns the first free placeholder for base, probing
// base_1, base_2, ... and marks it used.
func (b *Builder) reserveValueRef(base string) string {
	ref := base
	for counter := 1; b.usedValueRefs[ref]; counter++ {
		ref = base + "_" + strconv.Itoa(counter)
	}
	b.usedValueRefs[ref] = true
	return ref
}

// reserveRangeRefs returns the first free base_start/base_end pair for
// base, probing base_1, base_2, ... until both are unused.
func (b *Builder) reserveRangeRefs(base string) (string, string) {
	ref := base
	for counter := 1; b.usedValueRefs[ref+"_start"] || b.usedValueRefs[ref+"_end"]; counter++ {
		ref = base + "_" + strconv.Itoa(counter)
	}
	b.usedValueRefs[ref+"_start"] = true
	b.usedValueRefs[ref+"_end"] = true
	return ref + "_start", ref + "_end"
}

func (b *Builder) addName(cond core.Condition) {
	if cond.SubstitutedName != "" {
		b.names[cond.Key] = cond.SubstitutedName
	}
}

func (b *Builder) setValue(ref string, value any) {
	b.values[ref] = value
	b.usedValueRefs[ref] = true
}

// render emits the fragment for cond using ref as its value placeholder
func (b *Builder) render(cond core.Condition, ref string) (string, error) {
	key := cond.Key

	switch cond.Kind {
	case core.KindHashEq, core.KindEq, core.KindNotEq, core.KindGt, core.KindGtEq, core.KindLt, core.KindLtEq:
		scalar, err := scalarOf(cond)
		if err != nil {
			return "", err
		}
		b.setValue(ref, scalar.Value)
		return fmt.Sprintf("%s %s %s", key, comparisonOperator(cond.Kind), ref), nil

	case core.KindBeginsWith, core.KindContains:
		scalar, err := scalarOf(cond)
		if err != nil {
			return "", err
		}
		b.setValue(ref, scalar.Value)
		return fmt.Sprintf("%s(%s, %s)", cond.Kind, key, ref), nil

	case core.KindAttributeExists, core.KindAttributeNotExists:
		return fmt.Sprintf("%s(%s)", cond.Kind, key), nil

	case core.KindAttributeType:
		tag, ok := cond.Value.(core.TypeTag)
		if !ok {
			return "", fmt.Errorf("%s on %s requires a type tag, got %T", cond.Kind, key, cond.Value)
		}
		if !tag.Type.Valid() {
			return "", fmt.Errorf("%s on %s: unknown attribute type %q", cond.Kind, key, tag.Type)
		}
		b.setValue(ref, string(tag.Type))
		return fmt.Sprintf("attribute_type(%s, %s)", key, ref), nil

	case core.KindSize:
		size, ok := cond.Value.(core.SizeComparison)
		if !ok {
			return "", fmt.Errorf("%s on %s requires a size comparison, got %T", cond.Kind, key, cond.Value)
		}
		if !size.Op.Valid() {
			return "", fmt.Errorf("%s on %s: unknown operator %q", cond.Kind, key, size.Op)
		}
		sizeRef := b.reserveValueRef(":size_" + strings.TrimPrefix(ref, ":"))
		b.setValue(sizeRef, size.Value)
		return fmt.Sprintf("size(%s) %s %s", key, size.Op, sizeRef), nil

	case core.KindBetween:
		between, ok := cond.Value.(core.Range)
		if !ok {
			return "", fmt.Errorf("%s on %s requires a range, got %T", cond.Kind, key, cond.Value)
		}
		start, end := b.reserveRangeRefs(ref)
		b.setValue(start, between.Start)
		b.setValue(end, between.End)
		return fmt.Sprintf("%s BETWEEN %s AND %s", key, start, end), nil
	}

	return "", fmt.Errorf("unsupported condition %q on %s", cond.Kind, key)
}

func scalarOf(cond core.Condition) (core.Scalar, error) {
	scalar, ok := cond.Value.(core.Scalar)
	if !ok {
		return core.Scalar{}, fmt.Errorf("%s on %s requires a single value, got %T", cond.Kind, cond.Key, cond.Value)
	}
	return scalar, nil
}

func comparisonOperator(kind core.ConditionKind) core.Operator {
	switch kind {
	case core.KindNotEq:
		return core.NotEq
	case core.KindGt:
		return core.Gt
	case core.KindGtEq:
		return core.GtEq
	case core.KindLt:
		return core.Lt
	case core.KindLtEq:
		return core.LtEq
	default:
		return core.Eq
	}
}

// ExpressionComponents holds the compiled expressions and placeholder maps
type ExpressionComponents struct {
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]any
	KeyConditionExpression    string
	FilterExpression          string
	ProjectionExpression      string
}
