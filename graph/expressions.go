package graph

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names of the graph table.
const (
	AttrNode   = "Node"
	AttrType   = "Type"
	AttrData   = "Data"
	AttrString = "String"
	AttrNumber = "Number"
	AttrTarget = "Target"
	AttrGSIK   = "GSIK"
	AttrTGSIK  = "TGSIK"
)

// PropertyFilterExpr returns the filter expression that keeps only bare
// property records (no Target attribute).
// Use this when building custom queries over a node partition.
func PropertyFilterExpr() string {
	return "attribute_not_exists(#Target)"
}

// PropertyFilterNames returns expression attribute names for PropertyFilterExpr.
func PropertyFilterNames() map[string]string {
	return map[string]string{"#Target": AttrTarget}
}

// IsPropertyItem reports whether a raw item is a bare property record.
func IsPropertyItem(item map[string]types.AttributeValue) bool {
	_, exists := item[AttrTarget]
	return !exists
}

// shardExpression selects the live node records of one type within one shard
// of the type index, projecting only the identifier and payload.
func shardExpression(gsik, typ string, now time.Time) (expression.Expression, error) {
	key := expression.Key(AttrGSIK).Equal(expression.Value(gsik)).
		And(expression.Key(AttrType).Equal(expression.Value(typ)))
	nodesOnly := expression.Name(AttrTarget).Equal(expression.Name(AttrNode))
	projection := expression.NamesList(expression.Name(AttrNode), expression.Name(AttrData))

	return expression.NewBuilder().
		WithKeyCondition(key).
		WithFilter(nodesOnly.And(liveCondition(now))).
		WithProjection(projection).
		Build()
}

// attachedExpression selects every record of a node partition except the
// node's own record: its edges and its properties.
func attachedExpression(node string) (expression.Expression, error) {
	key := expression.Key(AttrNode).Equal(expression.Value(node))
	notSelf := expression.AttributeNotExists(expression.Name(AttrTarget)).
		Or(expression.Name(AttrTarget).NotEqual(expression.Value(node)))

	return expression.NewBuilder().
		WithKeyCondition(key).
		WithFilter(notSelf).
		Build()
}

// partitionExpression selects a whole node partition, projecting the sort key.
func partitionExpression(node string) (expression.Expression, error) {
	key := expression.Key(AttrNode).Equal(expression.Value(node))
	return expression.NewBuilder().
		WithKeyCondition(key).
		WithProjection(expression.NamesList(expression.Name(AttrType))).
		Build()
}

// mergeExprNames merges multiple expression attribute name maps.
func mergeExprNames(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// mergeExprValues merges multiple expression attribute value maps.
func mergeExprValues(maps ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}
