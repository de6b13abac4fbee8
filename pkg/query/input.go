package query

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/theory-cloud/tablequery/pkg/core"
)

// MarshalValues converts placeholder values to attribute values. Values that
// already are attribute values are used as is.
func MarshalValues(values map[string]any) (map[string]types.AttributeValue, error) {
	if len(values) == 0 {
		return nil, nil
	}

	out := make(map[string]types.AttributeValue, len(values))
	for placeholder, value := range values {
		if av, ok := value.(types.AttributeValue); ok {
			out[placeholder] = av
			continue
		}
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal value for %s: %w", placeholder, err)
		}
		out[placeholder] = av
	}
	return out, nil
}

// ToQueryInput converts a compiled request into a DynamoDB Query call
func ToQueryInput(c *core.CompiledQuery) (*dynamodb.QueryInput, error) {
	values, err := MarshalValues(c.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(c.TableName),
		Limit:                     aws.Int32(c.Limit),
		ExpressionAttributeNames:  c.ExpressionAttributeNames,
		ExpressionAttributeValues: values,
		ExclusiveStartKey:         c.ExclusiveStartKey,
		ScanIndexForward:          c.ScanIndexForward,
		IndexName:                 optionalString(c.IndexName),
		KeyConditionExpression:    optionalString(c.KeyConditionExpression),
		FilterExpression:          optionalString(c.FilterExpression),
		ProjectionExpression:      optionalString(c.ProjectionExpression),
		Select:                    types.Select(c.Select),
		ReturnConsumedCapacity:    types.ReturnConsumedCapacity(c.ReturnConsumedCapacity),
	}
	return input, nil
}

// ToScanInput converts a compiled request into a DynamoDB Scan call.
// Scans have no key condition or traversal direction.
func ToScanInput(c *core.CompiledQuery) (*dynamodb.ScanInput, error) {
	if c.KeyConditionExpression != "" {
		return nil, fmt.Errorf("scan of %s cannot carry key condition %q", c.TableName, c.KeyConditionExpression)
	}

	values, err := MarshalValues(c.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(c.TableName),
		Limit:                     aws.Int32(c.Limit),
		ExpressionAttributeNames:  c.ExpressionAttributeNames,
		ExpressionAttributeValues: values,
		ExclusiveStartKey:         c.ExclusiveStartKey,
		IndexName:                 optionalString(c.IndexName),
		FilterExpression:          optionalString(c.FilterExpression),
		ProjectionExpression:      optionalString(c.ProjectionExpression),
		Select:                    types.Select(c.Select),
		ReturnConsumedCapacity:    types.ReturnConsumedCapacity(c.ReturnConsumedCapacity),
	}
	return input, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
