package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"machinecore/internal/archive"
)

func TestServiceArchiveAndRestore(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	mock.Set(time.Unix(1_700_000_000, 0))
	archiver, err := archive.NewArchiver(archive.NewMemory(), archive.WithClock(mock))
	if err != nil {
		t.Fatalf("archiver: %v", err)
	}
	svc := newTestService(t, WithArchiver(archiver))
	defer func() { _ = svc.Close() }()
	register(t, svc, "m")

	if err := produce(svc, "m", 7); err != nil {
		t.Fatalf("produce: %v", err)
	}
	first, err := svc.Archive(ctx, "m")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	mock.Add(time.Minute)
	if err := produce(svc, "m", 5); err != nil {
		t.Fatalf("produce: %v", err)
	}
	second, err := svc.Archive(ctx, "m")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if first.Key >= second.Key {
		t.Fatalf("expected chronological keys, got %s then %s", first.Key, second.Key)
	}

	if err := produce(svc, "m", 30); err != nil {
		t.Fatalf("produce: %v", err)
	}
	key, err := svc.RestoreArchive(ctx, "m")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if key != second.Key {
		t.Fatalf("expected newest snapshot %s, got %s", second.Key, key)
	}
	st, _ := svc.View(ctx, "m")
	if totalOf(st, "output", ingot) != 12 {
		t.Fatalf("expected 12 after restore, got %d", totalOf(st, "output", ingot))
	}

	register(t, svc, "never-archived")
	if _, err := svc.RestoreArchive(ctx, "never-archived"); !errors.Is(err, archive.ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}
