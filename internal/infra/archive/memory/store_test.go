package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"machinecore/internal/archive/core"
)

func TestStore_MissingHeadGet(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found head error, got %v", err)
	}
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found get error, got %v", err)
	}
	if ok, err := store.Delete(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected delete false")
	}
}

func TestStore_PutGetListDelete(t *testing.T) {
	store := New()
	ctx := context.Background()
	md := map[string]string{"machine-id": "m1"}
	if _, err := store.Put(ctx, "machines/m1/1", bytes.NewReader([]byte("v")), core.PutOptions{Metadata: md}); err != nil {
		t.Fatalf("put: %v", err)
	}
	md["machine-id"] = "mutated"
	if _, err := store.Put(ctx, "machines/m1/1", bytes.NewReader([]byte("v2")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected duplicate put error, got %v", err)
	}
	if _, err := store.Put(ctx, "machines/m2/1", bytes.NewReader([]byte("w")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}

	info, rc, err := store.Get(ctx, "machines/m1/1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "v" || info.Size != 1 || info.Metadata["machine-id"] != "m1" {
		t.Fatalf("unexpected blob %+v %q", info, body)
	}

	if list, err := store.List(ctx, ""); err != nil || len(list) != 2 {
		t.Fatalf("list all: %v %d", err, len(list))
	}
	if list, err := store.List(ctx, "machines/m2/"); err != nil || len(list) != 1 || list[0].Key != "machines/m2/1" {
		t.Fatalf("list prefix: %v %v", err, list)
	}
	if ok, err := store.Delete(ctx, "machines/m2/1"); err != nil || !ok {
		t.Fatalf("expected delete true")
	}
	if _, err := store.PresignURL(ctx, "machines/m1/1", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported presign")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, fmt.Errorf("fail") }

func TestStore_PutReadErrorAndDriver(t *testing.T) {
	store := New()
	if store.Driver() != core.DriverMemory {
		t.Fatalf("expected memory driver")
	}
	if _, err := store.Put(context.Background(), "bad", failingReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected read error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Put(ctx, "k", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
