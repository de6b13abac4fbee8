package core

// ConditionKind tags the predicate a Condition renders to
type ConditionKind string

const (
	KindHashEq             ConditionKind = "hash-eq"
	KindEq                 ConditionKind = "eq"
	KindNotEq              ConditionKind = "notEq"
	KindGt                 ConditionKind = "gt"
	KindGtEq               ConditionKind = "gtEq"
	KindLt                 ConditionKind = "lt"
	KindLtEq               ConditionKind = "ltEq"
	KindBeginsWith         ConditionKind = "begins_with"
	KindBetween            ConditionKind = "between"
	KindContains           ConditionKind = "contains"
	KindAttributeExists    ConditionKind = "attribute_exists"
	KindAttributeNotExists ConditionKind = "attribute_not_exists"
	KindAttributeType      ConditionKind = "attribute_type"
	KindSize               ConditionKind = "size"
)

// KeyKind reports whether k may appear in a key condition expression
func (k ConditionKind) KeyKind() bool {
	switch k {
	case KindHashEq, KindEq, KindGt, KindGtEq, KindLt, KindLtEq, KindBeginsWith, KindBetween:
		return true
	}
	return false
}

// ConditionValue is the operand of a Condition. The concrete type is
// determined by the condition's kind: Scalar for comparisons, Range for
// between, TypeTag for attribute_type, SizeComparison for size, and nil
// for the existence checks.
type ConditionValue interface {
	conditionValue()
}

// Scalar is a single comparison operand
type Scalar struct {
	Value any
}

// Range holds the inclusive bounds of a BETWEEN
type Range struct {
	Start any
	End   any
}

// TypeTag is the operand of attribute_type
type TypeTag struct {
	Type AttributeType
}

// SizeComparison compares size(attr) against Value with Op
type SizeComparison struct {
	Value any
	Op    Operator
}

func (Scalar) conditionValue()         {}
func (Range) conditionValue()          {}
func (TypeTag) conditionValue()        {}
func (SizeComparison) conditionValue() {}

// Condition is one key or filter predicate.
// SubstitutedName is set once Key has been rewritten to a # placeholder and
// holds the attribute's real name.
type Condition struct {
	Value           ConditionValue
	Key             string
	Kind            ConditionKind
	SubstitutedName string
}
