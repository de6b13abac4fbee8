package query

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	tqerrors "github.com/theory-cloud/tablequery/pkg/errors"
)

// Cursor is the portable form of a LastEvaluatedKey. Encoded cursors are
// base64url JSON and safe to hand to API clients.
type Cursor struct {
	LastEvaluatedKey map[string]cursorValue `json:"lastKey"`
	IndexName        string                 `json:"index,omitempty"`
}

// cursorValue mirrors the DynamoDB JSON shape of an attribute value. Binary
// members are base64 encoded by encoding/json.
type cursorValue struct {
	S    *string                `json:"S,omitempty"`
	N    *string                `json:"N,omitempty"`
	B    []byte                 `json:"B,omitempty"`
	BOOL *bool                  `json:"BOOL,omitempty"`
	NULL bool                   `json:"NULL,omitempty"`
	L    []cursorValue          `json:"L,omitempty"`
	M    map[string]cursorValue `json:"M,omitempty"`
	SS   []string               `json:"SS,omitempty"`
	NS   []string               `json:"NS,omitempty"`
	BS   [][]byte               `json:"BS,omitempty"`
	// IsL and IsM keep empty lists and maps distinguishable from absent members
	IsL bool `json:"isL,omitempty"`
	IsM bool `json:"isM,omitempty"`
}

// EncodeCursor encodes a LastEvaluatedKey. An empty key encodes to "".
func EncodeCursor(lastKey map[string]types.AttributeValue, indexName string) (string, error) {
	if len(lastKey) == 0 {
		return "", nil
	}

	key := make(map[string]cursorValue, len(lastKey))
	for name, av := range lastKey {
		v, err := toCursorValue(av)
		if err != nil {
			return "", fmt.Errorf("failed to convert attribute %s: %w", name, err)
		}
		key[name] = v
	}

	data, err := json.Marshal(Cursor{LastEvaluatedKey: key, IndexName: indexName})
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// DecodeCursor reverses EncodeCursor. "" decodes to a nil cursor.
func DecodeCursor(encoded string) (*Cursor, error) {
	if encoded == "" {
		return nil, nil
	}

	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tqerrors.ErrInvalidCursor, err)
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("%w: %v", tqerrors.ErrInvalidCursor, err)
	}
	return &cursor, nil
}

// ToAttributeValues converts the cursor back into an ExclusiveStartKey
func (c *Cursor) ToAttributeValues() (map[string]types.AttributeValue, error) {
	if c == nil || len(c.LastEvaluatedKey) == 0 {
		return nil, nil
	}

	key := make(map[string]types.AttributeValue, len(c.LastEvaluatedKey))
	for name, v := range c.LastEvaluatedKey {
		av, err := v.toAttributeValue()
		if err != nil {
			return nil, fmt.Errorf("%w: attribute %s: %v", tqerrors.ErrInvalidCursor, name, err)
		}
		key[name] = av
	}
	return key, nil
}

func toCursorValue(av types.AttributeValue) (cursorValue, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return cursorValue{S: &v.Value}, nil
	case *types.AttributeValueMemberN:
		return cursorValue{N: &v.Value}, nil
	case *types.AttributeValueMemberB:
		return cursorValue{B: v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return cursorValue{BOOL: &v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return cursorValue{NULL: true}, nil
	case *types.AttributeValueMemberSS:
		return cursorValue{SS: v.Value}, nil
	case *types.AttributeValueMemberNS:
		return cursorValue{NS: v.Value}, nil
	case *types.AttributeValueMemberBS:
		return cursorValue{BS: v.Value}, nil
	case *types.AttributeValueMemberL:
		list := make([]cursorValue, len(v.Value))
		for i, item := range v.Value {
			cv, err := toCursorValue(item)
			if err != nil {
				return cursorValue{}, err
			}
			list[i] = cv
		}
		return cursorValue{L: list, IsL: true}, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]cursorValue, len(v.Value))
		for k, item := range v.Value {
			cv, err := toCursorValue(item)
			if err != nil {
				return cursorValue{}, err
			}
			m[k] = cv
		}
		return cursorValue{M: m, IsM: true}, nil
	default:
		return cursorValue{}, fmt.Errorf("unsupported attribute value type %T", av)
	}
}

func (v cursorValue) toAttributeValue() (types.AttributeValue, error) {
	switch {
	case v.S != nil:
		return &types.AttributeValueMemberS{Value: *v.S}, nil
	case v.N != nil:
		return &types.AttributeValueMemberN{Value: *v.N}, nil
	case v.B != nil:
		return &types.AttributeValueMemberB{Value: v.B}, nil
	case v.BOOL != nil:
		return &types.AttributeValueMemberBOOL{Value: *v.BOOL}, nil
	case v.NULL:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case v.SS != nil:
		return &types.AttributeValueMemberSS{Value: v.SS}, nil
	case v.NS != nil:
		return &types.AttributeValueMemberNS{Value: v.NS}, nil
	case v.BS != nil:
		return &types.AttributeValueMemberBS{Value: v.BS}, nil
	case v.IsL:
		list := make([]types.AttributeValue, len(v.L))
		for i, item := range v.L {
			av, err := item.toAttributeValue()
			if err != nil {
				return nil, err
			}
			list[i] = av
		}
		return &types.AttributeValueMemberL{Value: list}, nil
	case v.IsM:
		m := make(map[string]types.AttributeValue, len(v.M))
		for k, item := range v.M {
			av, err := item.toAttributeValue()
			if err != nil {
				return nil, err
			}
			m[k] = av
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	}
	return nil, errors.New("empty attribute value")
}
