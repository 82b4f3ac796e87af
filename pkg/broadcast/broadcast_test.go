package broadcast_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/pkg/broadcast"
)

func TestLocalDeliversToDocumentSubscribers(t *testing.T) {
	ctx := context.Background()
	hub := broadcast.New(nil, "docuprex", slog.New(slog.NewTextHandler(io.Discard, nil)))

	docA, docB := uuid.New(), uuid.New()
	subA, cancelA, err := hub.Subscribe(ctx, docA)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer cancelA()
	subB, cancelB, _ := hub.Subscribe(ctx, docB)
	defer cancelB()

	event := broadcast.Event{Type: broadcast.DocumentSigned, DocumentID: docA, Status: "in_progress", At: time.Now()}
	if err := hub.Publish(ctx, event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-subA:
		if got.Type != broadcast.DocumentSigned || got.DocumentID != docA {
			t.Errorf("event = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber for docA received nothing")
	}

	select {
	case got := <-subB:
		t.Errorf("subscriber for docB received %+v", got)
	default:
	}
}

func TestLocalCancelClosesChannel(t *testing.T) {
	ctx := context.Background()
	hub := broadcast.NewLocal()
	doc := uuid.New()

	sub, cancel, _ := hub.Subscribe(ctx, doc)
	cancel()
	cancel()

	if _, open := <-sub; open {
		t.Error("channel should be closed after cancel")
	}

	if err := hub.Publish(ctx, broadcast.Event{Type: broadcast.DocumentUpdated, DocumentID: doc}); err != nil {
		t.Errorf("Publish() after cancel error = %v", err)
	}
}

func TestLocalPublishNeverBlocks(t *testing.T) {
	ctx := context.Background()
	hub := broadcast.NewLocal()
	doc := uuid.New()

	_, cancel, _ := hub.Subscribe(ctx, doc)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for range 100 {
			hub.Publish(ctx, broadcast.Event{Type: broadcast.DocumentUpdated, DocumentID: doc})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
