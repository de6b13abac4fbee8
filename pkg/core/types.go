package core

// Mode is the operating mode of a query. It may be set once.
type Mode int

const (
	ModeUnset Mode = iota
	ModeSelect
	ModeScan
	ModeCount
)

func (m Mode) String() string {
	switch m {
	case ModeSelect:
		return "select"
	case ModeScan:
		return "scan"
	case ModeCount:
		return "count"
	default:
		return ""
	}
}

// Operator is a relational operator usable in size comparisons
type Operator string

const (
	Eq    Operator = "="
	NotEq Operator = "<>"
	Gt    Operator = ">"
	GtEq  Operator = ">="
	Lt    Operator = "<"
	LtEq  Operator = "<="
)

// Valid reports whether o is one of the six relational operators
func (o Operator) Valid() bool {
	switch o {
	case Eq, NotEq, Gt, GtEq, Lt, LtEq:
		return true
	}
	return false
}

// AttributeType is a stored type tag understood by attribute_type()
type AttributeType string

const (
	TypeString    AttributeType = "S"
	TypeStringSet AttributeType = "SS"
	TypeNumber    AttributeType = "N"
	TypeNumberSet AttributeType = "NS"
	TypeBinary    AttributeType = "B"
	TypeBinarySet AttributeType = "BS"
	TypeBoolean   AttributeType = "BOOL"
	TypeNull      AttributeType = "NULL"
	TypeList      AttributeType = "L"
	TypeMap       AttributeType = "M"
)

// Valid reports whether t is a known type tag
func (t AttributeType) Valid() bool {
	switch t {
	case TypeString, TypeStringSet, TypeNumber, TypeNumberSet, TypeBinary,
		TypeBinarySet, TypeBoolean, TypeNull, TypeList, TypeMap:
		return true
	}
	return false
}

// CapacityLevel selects how much consumed-capacity detail the store reports
type CapacityLevel string

const (
	CapacityIndexes CapacityLevel = "INDEXES"
	CapacityTotal   CapacityLevel = "TOTAL"
	CapacityNone    CapacityLevel = "NONE"
)

// Valid reports whether l is one of the three reporting levels
func (l CapacityLevel) Valid() bool {
	switch l {
	case CapacityIndexes, CapacityTotal, CapacityNone:
		return true
	}
	return false
}
