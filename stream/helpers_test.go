package stream

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

// --- getStringAttr Tests ---

func TestGetStringAttr(t *testing.T) {
	tests := []struct {
		name  string
		image map[string]events.DynamoDBAttributeValue
		want  string
	}{
		{
			name:  "existing string",
			image: map[string]events.DynamoDBAttributeValue{"Target": events.NewStringAttribute("Org1#n1")},
			want:  "Org1#n1",
		},
		{
			name:  "missing key",
			image: map[string]events.DynamoDBAttributeValue{"other": events.NewStringAttribute("value")},
		},
		{
			name:  "empty image",
			image: map[string]events.DynamoDBAttributeValue{},
		},
		{
			name: "nil image",
		},
		{
			name:  "number attribute",
			image: map[string]events.DynamoDBAttributeValue{"Target": events.NewNumberAttribute("42")},
		},
		{
			name:  "unicode value",
			image: map[string]events.DynamoDBAttributeValue{"Target": events.NewStringAttribute("日本語テスト")},
			want:  "日本語テスト",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getStringAttr(tt.image, "Target"); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// --- processRecord Tests ---

type recordingPurger struct {
	nodes []string
	err   error
}

func (p *recordingPurger) DeletePartition(ctx context.Context, node string) (int, error) {
	p.nodes = append(p.nodes, node)
	return 3, p.err
}

func removeRecord(node, typ string, oldImage map[string]events.DynamoDBAttributeValue) *events.DynamoDBEventRecord {
	return &events.DynamoDBEventRecord{
		EventID:   "evt-" + typ,
		EventName: "REMOVE",
		Change: events.DynamoDBStreamRecord{
			Keys: map[string]events.DynamoDBAttributeValue{
				"Node": events.NewStringAttribute(node),
				"Type": events.NewStringAttribute(typ),
			},
			OldImage: oldImage,
		},
	}
}

func TestProcessRecord_SkipsNonRemoveEvents(t *testing.T) {
	for _, eventName := range []string{"INSERT", "MODIFY", "UNKNOWN"} {
		t.Run(eventName, func(t *testing.T) {
			p := &recordingPurger{}
			h := NewHandler(p, nil)
			record := removeRecord("Org1#n1", "Person", map[string]events.DynamoDBAttributeValue{
				"Target": events.NewStringAttribute("Org1#n1"),
			})
			record.EventName = eventName

			if err := h.processRecord(context.Background(), record); err != nil {
				t.Errorf("expected no error for %s event, got %v", eventName, err)
			}
			if len(p.nodes) != 0 {
				t.Errorf("expected no purge, got %v", p.nodes)
			}
		})
	}
}

func TestProcessRecord_Kinds(t *testing.T) {
	tests := []struct {
		name      string
		oldImage  map[string]events.DynamoDBAttributeValue
		wantPurge bool
	}{
		{
			name:      "node record",
			oldImage:  map[string]events.DynamoDBAttributeValue{"Target": events.NewStringAttribute("Org1#n1")},
			wantPurge: true,
		},
		{
			name:     "edge record",
			oldImage: map[string]events.DynamoDBAttributeValue{"Target": events.NewStringAttribute("Org1#n2")},
		},
		{
			name:     "property record",
			oldImage: map[string]events.DynamoDBAttributeValue{"Data": events.NewStringAttribute("x")},
		},
		{
			name: "keys only stream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &recordingPurger{}
			h := NewHandler(p, nil)

			if err := h.processRecord(context.Background(), removeRecord("Org1#n1", "Person", tt.oldImage)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if purged := len(p.nodes) == 1 && p.nodes[0] == "Org1#n1"; purged != tt.wantPurge {
				t.Errorf("expected purge %v, got %v", tt.wantPurge, p.nodes)
			}
		})
	}
}

func TestProcessRecord_MissingKey(t *testing.T) {
	p := &recordingPurger{}
	h := NewHandler(p, nil)
	record := &events.DynamoDBEventRecord{EventName: "REMOVE"}

	if err := h.processRecord(context.Background(), record); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if len(p.nodes) != 0 {
		t.Errorf("expected no purge, got %v", p.nodes)
	}
}

// --- Benchmark Tests ---

func BenchmarkGetStringAttr(b *testing.B) {
	image := map[string]events.DynamoDBAttributeValue{
		"Target": events.NewStringAttribute("Org1#3f2a9c0d1b7e4a65"),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		getStringAttr(image, "Target")
	}
}
