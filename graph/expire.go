package graph

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// AttrTTL is the attribute the table's time-to-live setting must point at.
const AttrTTL = "ttl"

// ExpireNode schedules the node record (node, typ) for removal by DynamoDB
// TTL at the given time. GetNodesOfType stops returning the node once the
// time has passed, before DynamoDB actually removes it. When the removal
// reaches the table stream, the stream handler purges the rest of the
// partition.
//
// ErrNodeNotFound is returned when (node, typ) is not a node record.
func (g *Graph) ExpireNode(ctx context.Context, node, typ string, at time.Time) error {
	if node == "" {
		return ErrUndefinedNode
	}
	if typ == "" {
		return ErrUndefinedType
	}

	update := expression.Set(expression.Name(AttrTTL), expression.Value(at.Unix()))
	isNode := expression.Name(AttrTarget).Equal(expression.Value(node))
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(isNode).
		Build()
	if err != nil {
		return fmt.Errorf("build expire expression: %w", err)
	}

	_, err = g.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(g.config.Table),
		Key: map[string]types.AttributeValue{
			AttrNode: &types.AttributeValueMemberS{Value: node},
			AttrType: &types.AttributeValueMemberS{Value: typ},
		},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	g.metrics.observeRequest(opUpdateItem, err)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: %s %s", ErrNodeNotFound, node, typ)
		}
		return storeError(opUpdateItem, g.config.Table, node, err)
	}

	g.logger.DebugContext(ctx, "node expiry scheduled",
		"node", node,
		"type", typ,
		"at", at.Unix(),
	)
	return nil
}

// IsExpired reports whether a raw item carries a TTL at or before now.
func IsExpired(item map[string]types.AttributeValue, now time.Time) bool {
	ttlAttr, exists := item[AttrTTL]
	if !exists {
		return false
	}
	ttlNum, ok := ttlAttr.(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(ttlNum.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= now.Unix()
}

// liveCondition keeps items without a TTL or with a TTL after now.
func liveCondition(now time.Time) expression.ConditionBuilder {
	return expression.AttributeNotExists(expression.Name(AttrTTL)).
		Or(expression.Name(AttrTTL).GreaterThan(expression.Value(now.Unix())))
}
