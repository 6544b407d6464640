package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	want := NewSweepJob(time.Now().Add(time.Hour))
	if err := q.Publish(ctx, want); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	jobs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	select {
	case got := <-jobs:
		if got.Kind != SweepKind {
			t.Errorf("Kind = %q, want %q", got.Kind, SweepKind)
		}
		if string(got.Body) != string(want.Body) {
			t.Errorf("Body = %q, want %q", got.Body, want.Body)
		}
	case <-time.After(time.Second):
		t.Fatal("no job received within 1s")
	}
}

func TestInMemoryPublishCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := NewInMemory(0)
	if err := q.Publish(ctx, Job{Kind: SweepKind}); err == nil {
		t.Error("Publish() on cancelled context error = nil, want error")
	}
}

func TestSweepJobRoundtrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	job := NewSweepJob(at)
	got, err := job.SweepTime()
	if err != nil {
		t.Fatalf("SweepTime() error = %v", err)
	}
	if !got.Equal(at) {
		t.Errorf("SweepTime() = %v, want %v", got, at)
	}
}

func TestSerializeRoundtrip(t *testing.T) {
	job := Job{Kind: SweepKind, Body: []byte("2026-03-01T09:30:00Z")}
	got, err := deserialize(serialize(job))
	if err != nil {
		t.Fatalf("deserialize() error = %v", err)
	}
	if got.Kind != job.Kind || string(got.Body) != string(job.Body) {
		t.Errorf("roundtrip = %+v, want %+v", got, job)
	}
}
