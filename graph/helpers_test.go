package graph_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/neilpennell/dynamodb-graph/graph"
	"github.com/neilpennell/dynamodb-graph/internal/ddbtest"
)

const testTable = "GraphTest"

// newTestClient returns an in-memory client with the graph table and its
// ByType index.
func newTestClient() *ddbtest.Client {
	c := ddbtest.New()
	c.CreateTable(testTable,
		ddbtest.KeySchema{Hash: graph.AttrNode, Range: graph.AttrType},
		map[string]ddbtest.KeySchema{
			graph.DefaultIndexName: {Hash: graph.AttrGSIK, Range: graph.AttrType},
		},
	)
	return c
}

func testConfig(maxGSIK int) graph.Config {
	return graph.Config{
		Table:     testTable,
		IndexName: graph.DefaultIndexName,
		MaxGSIK:   maxGSIK,
	}
}

func newTestGraph(t *testing.T, maxGSIK int, opts ...graph.Option) (*graph.Graph, *ddbtest.Client) {
	t.Helper()
	c := newTestClient()
	g, err := graph.New(c, testConfig(maxGSIK), opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return g, c
}

func s(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

func n(v string) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: v}
}

func nodeItem(node, typ, data, gsik string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"Node":   s(node),
		"Type":   s(typ),
		"Data":   s(data),
		"Target": s(node),
		"GSIK":   s(gsik),
	}
}

func edgeItem(node, typ, target, data, gsik string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"Node":   s(node),
		"Type":   s(typ),
		"Data":   s(data),
		"Target": s(target),
		"GSIK":   s(gsik),
	}
}

func propertyItem(node, typ string, data types.AttributeValue, gsik string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"Node": s(node),
		"Type": s(typ),
		"Data": data,
		"GSIK": s(gsik),
	}
}

func seed(t *testing.T, c *ddbtest.Client, items ...map[string]types.AttributeValue) {
	t.Helper()
	if err := c.Seed(testTable, items...); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
}

// stringValues returns every string placeholder value of an expression.
func stringValues(values map[string]types.AttributeValue) []string {
	var out []string
	for _, v := range values {
		if sv, ok := v.(*types.AttributeValueMemberS); ok {
			out = append(out, sv.Value)
		}
	}
	return out
}

func hasStringValue(values map[string]types.AttributeValue, want string) bool {
	for _, v := range stringValues(values) {
		if v == want {
			return true
		}
	}
	return false
}

func mustCreateNode(t *testing.T, g *graph.Graph, org, typ string, data any) *graph.Record {
	t.Helper()
	rec, err := g.CreateNode(context.Background(), org, typ, data)
	if err != nil {
		t.Fatalf("CreateNode(%q, %q) failed: %v", org, typ, err)
	}
	return rec
}

func mustAddProperty(t *testing.T, g *graph.Graph, org, node, typ string, data any) *graph.Record {
	t.Helper()
	rec, err := g.AddPropertyToNode(context.Background(), org, node, typ, data)
	if err != nil {
		t.Fatalf("AddPropertyToNode(%q, %q) failed: %v", node, typ, err)
	}
	return rec
}
