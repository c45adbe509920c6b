package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/felixgeelhaar/toolchanger/domain/event"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Database != "toolchanger" || cfg.Collection != "journal" {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}

	for _, opt := range []Option{
		WithURI("mongodb://db:27017"),
		WithDatabase("shop"),
		WithCollection("events"),
		WithTimeouts(time.Second, 2*time.Second),
	} {
		opt(&cfg)
	}
	if cfg.URI != "mongodb://db:27017" || cfg.Database != "shop" || cfg.Collection != "events" {
		t.Errorf("options not applied: %+v", cfg)
	}
	if cfg.ConnectTimeout != time.Second || cfg.QueryTimeout != 2*time.Second {
		t.Errorf("timeouts = %v/%v", cfg.ConnectTimeout, cfg.QueryTimeout)
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(),
		WithURI("mongodb://127.0.0.1:1"),
		WithTimeouts(200*time.Millisecond, 200*time.Millisecond),
	)
	if !errors.Is(err, event.ErrConnectionFailed) {
		t.Errorf("NewClient() error = %v, want ErrConnectionFailed", err)
	}
}

func TestQueryFilter(t *testing.T) {
	t.Parallel()

	from := time.Unix(100, 0)
	to := time.Unix(200, 0)

	tests := []struct {
		name string
		opts event.QueryOptions
		want bson.M
	}{
		{
			name: "stream only",
			want: bson.M{"stream": "tc"},
		},
		{
			name: "types",
			opts: event.QueryOptions{Types: []event.Type{event.TypeToolSelected, event.TypeToolUnselected}},
			want: bson.M{"stream": "tc", "type": bson.M{"$in": []string{"tool.selected", "tool.unselected"}}},
		},
		{
			name: "time window",
			opts: event.QueryOptions{FromTime: from.UnixNano(), ToTime: to.UnixNano()},
			want: bson.M{"stream": "tc", "timestamp": bson.M{"$gte": from.UTC(), "$lte": to.UTC()}},
		},
		{
			name: "from only",
			opts: event.QueryOptions{FromTime: from.UnixNano()},
			want: bson.M{"stream": "tc", "timestamp": bson.M{"$gte": from.UTC()}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := queryFilter("tc", tt.opts); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("queryFilter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindOptions(t *testing.T) {
	t.Parallel()

	opts := findOptions(event.QueryOptions{Limit: 5, Offset: 10})
	if opts.Limit == nil || *opts.Limit != 5 {
		t.Errorf("Limit = %v, want 5", opts.Limit)
	}
	if opts.Skip == nil || *opts.Skip != 10 {
		t.Errorf("Skip = %v, want 10", opts.Skip)
	}
	if !reflect.DeepEqual(opts.Sort, bson.D{{Key: "sequence", Value: 1}}) {
		t.Errorf("Sort = %v", opts.Sort)
	}

	opts = findOptions(event.QueryOptions{})
	if opts.Limit != nil || opts.Skip != nil {
		t.Errorf("unbounded query set Limit=%v Skip=%v", opts.Limit, opts.Skip)
	}
}

func TestDocumentConversion(t *testing.T) {
	t.Parallel()

	e := event.Event{
		ID:        "id-1",
		Stream:    "tc",
		Type:      event.TypeToolSelected,
		Sequence:  7,
		Payload:   json.RawMessage(`{"tool":"T1"}`),
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Version:   1,
	}

	doc := toDocument(&e)
	if doc.Stream != "tc" || doc.Type != "tool.selected" || doc.Sequence != 7 {
		t.Errorf("toDocument() = %+v", doc)
	}
	if got := fromDocument(doc); !reflect.DeepEqual(got, e) {
		t.Errorf("fromDocument() = %+v, want %+v", got, e)
	}
}
