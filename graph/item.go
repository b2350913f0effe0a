package graph

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Client is the subset of the DynamoDB API the graph needs.
// *dynamodb.Client satisfies it.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Record is a single item of the graph table: a node, an edge or a property.
type Record struct {
	// Node is the partition key: the owning node's identifier.
	Node string `dynamodbav:"Node"`

	// Type is the sort key: node type, edge label or property name.
	Type string `dynamodbav:"Type"`

	// Data is the payload.
	Data any `dynamodbav:"Data,omitempty"`

	// String and Number hold a scalar property value written by other
	// producers under a typed attribute instead of Data.
	String string   `dynamodbav:"String,omitempty"`
	Number *float64 `dynamodbav:"Number,omitempty"`

	// Target equals Node for nodes, names the target node for edges and is
	// empty (not stored) for properties.
	Target string `dynamodbav:"Target,omitempty"`

	// GSIK is the sharded partition key of the type index.
	GSIK string `dynamodbav:"GSIK,omitempty"`

	// TGSIK is the type-scoped shard key, written with the same bucket as GSIK.
	TGSIK string `dynamodbav:"TGSIK,omitempty"`

	// TTL is the expiry set by ExpireNode, in Unix seconds.
	TTL int64 `dynamodbav:"ttl,omitempty"`
}

// Value returns the record's payload: Data when present, otherwise the
// String or Number attribute.
func (r Record) Value() any {
	switch {
	case r.Data != nil:
		return r.Data
	case r.String != "":
		return r.String
	case r.Number != nil:
		return *r.Number
	}
	return nil
}

// IsNode reports whether the record is a node record.
func (r Record) IsNode() bool { return r.Target != "" && r.Target == r.Node }

// IsEdge reports whether the record is an edge record.
func (r Record) IsEdge() bool { return r.Target != "" && r.Target != r.Node }

// IsProperty reports whether the record is a bare property record.
func (r Record) IsProperty() bool { return r.Target == "" }

// NodeView is a node as returned by GetNodesOfType.
type NodeView struct {
	Node string
	Data any

	// Fields holds the (Type, Data) pairs of the node's edges and properties.
	// It is nil unless the query was expanded (depth > 0).
	Fields map[string]any
}

// Field returns an expanded edge or property value by type.
func (v *NodeView) Field(typ string) (any, bool) {
	val, ok := v.Fields[typ]
	return val, ok
}

// NodesResult is the merged result of a scatter-gather query.
// Item order is not stable between calls.
type NodesResult struct {
	Items        []*NodeView
	Count        int32
	ScannedCount int32
}

// merge folds a partial result into r. It is associative and commutative
// apart from item order.
func (r *NodesResult) merge(part NodesResult) {
	r.Items = append(r.Items, part.Items...)
	r.Count += part.Count
	r.ScannedCount += part.ScannedCount
}

// PropertyQuery defines a property lookup within one node's partition.
type PropertyQuery struct {
	// Node is the partition to read. Required.
	Node string

	// Expression is an optional extra key condition on the sort key, using
	// the #Type name and :Type value placeholders,
	// e.g. "begins_with(#Type, :Type)".
	Expression string

	// Value is bound to :Type. Required when Expression is set.
	Value any

	// Limit is the maximum number of items to evaluate (0 = no limit).
	Limit int32

	// ExclusiveStartKey continues a previous truncated query.
	ExclusiveStartKey map[string]types.AttributeValue
}

// PropertiesResult is a single page of property records.
type PropertiesResult struct {
	Items        []Record
	Count        int32
	ScannedCount int32

	// LastEvaluatedKey is set when the page was truncated; pass it back as
	// PropertyQuery.ExclusiveStartKey to continue.
	LastEvaluatedKey map[string]types.AttributeValue
}
