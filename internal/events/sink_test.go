package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"pricebook/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestRedisSinkPublishesOnPerEventChannel(t *testing.T) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, "catalog.events.price_changed")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	sink := NewRedisSink(client, "catalog.events")
	event := domain.PriceChanged{
		ListingCode: "web",
		SKU:         "A",
		OldPriceQ:   1000,
		NewPriceQ:   900,
	}
	if err := sink.Publish(ctx, event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var got domain.PriceChanged
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("payload is not valid JSON: %v", err)
		}
		if got != event {
			t.Errorf("got %+v, want %+v", got, event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRedisSinkChannelNameIncludesEventName(t *testing.T) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, "catalog.events.product_created")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	sink := NewRedisSink(client, "catalog.events")
	if err := sink.Publish(ctx, domain.ProductCreated{SKU: "NEW"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Channel != "catalog.events.product_created" {
			t.Errorf("unexpected channel %q", msg.Channel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestLogSinkNeverFails(t *testing.T) {
	sink := NewLogSink(zap.NewNop())
	if err := sink.Publish(context.Background(), domain.ProductCreated{SKU: "A"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

type recordingSink struct {
	events []domain.Event
	err    error
}

func (s *recordingSink) Publish(ctx context.Context, event domain.Event) error {
	s.events = append(s.events, event)
	return s.err
}

func TestFanoutSinkReachesEverySink(t *testing.T) {
	first := &recordingSink{err: errors.New("broker down")}
	second := &recordingSink{}
	fanout := FanoutSink{first, second}

	err := fanout.Publish(context.Background(), domain.ProductCreated{SKU: "A"})
	if err == nil || err.Error() != "broker down" {
		t.Errorf("expected first sink's error, got %v", err)
	}
	if len(first.events) != 1 || len(second.events) != 1 {
		t.Error("every sink must see the event even when an earlier one fails")
	}
}

func TestNopSink(t *testing.T) {
	if err := (NopSink{}).Publish(context.Background(), domain.PriceChanged{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
