package graph

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PropertiesFunc reads one page of a node's bare property records.
type PropertiesFunc func(ctx context.Context, q PropertyQuery) (*PropertiesResult, error)

// NewPropertiesQuery validates the configuration and returns a property
// query bound to client and cfg.Table.
//
// The query reads a single partition and never paginates on its own: when
// the result carries a LastEvaluatedKey the caller continues from it.
func NewPropertiesQuery(client Client, cfg Config) (PropertiesFunc, error) {
	if client == nil {
		return nil, &ConfigError{Field: "Client", Tag: "required"}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return propertiesQuery(client, cfg.Table, nil), nil
}

func propertiesQuery(client Client, table string, metrics *Metrics) PropertiesFunc {
	return func(ctx context.Context, q PropertyQuery) (*PropertiesResult, error) {
		input, err := buildPropertiesInput(table, q)
		if err != nil {
			return nil, err
		}

		out, err := client.Query(ctx, input)
		metrics.observeRequest(opQuery, err)
		if err != nil {
			return nil, storeError(opQuery, table, q.Node, err)
		}

		var items []Record
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal properties of %s: %w", q.Node, err)
		}
		return &PropertiesResult{
			Items:            items,
			Count:            out.Count,
			ScannedCount:     out.ScannedCount,
			LastEvaluatedKey: out.LastEvaluatedKey,
		}, nil
	}
}

// buildPropertiesInput builds the partition query for q. The base filter
// excludes every record carrying a Target attribute; q.Expression, when set,
// is appended to the key condition with its #Type/:Type placeholders.
func buildPropertiesInput(table string, q PropertyQuery) (*dynamodb.QueryInput, error) {
	if q.Node == "" {
		return nil, ErrUndefinedNode
	}
	if (q.Expression == "") != (q.Value == nil) {
		return nil, ErrIncompleteTypeFilter
	}

	keyCondition := "#Node = :Node"
	names := mergeExprNames(map[string]string{"#Node": AttrNode}, PropertyFilterNames())
	values := map[string]types.AttributeValue{
		":Node": &types.AttributeValueMemberS{Value: q.Node},
	}

	if q.Expression != "" {
		typeValue, err := attributevalue.Marshal(q.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal type filter value: %w", err)
		}
		keyCondition += " AND " + q.Expression
		names = mergeExprNames(names, map[string]string{"#Type": AttrType})
		values = mergeExprValues(values, map[string]types.AttributeValue{":Type": typeValue})
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    aws.String(keyCondition),
		FilterExpression:          aws.String(PropertyFilterExpr()),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ExclusiveStartKey:         q.ExclusiveStartKey,
	}
	if q.Limit > 0 {
		input.Limit = aws.Int32(q.Limit)
	}
	return input, nil
}
