package postgres

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"machinecore/internal/infra/persistence/postgres/testutil"
)

func newTestStore(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, conn
}

func TestNewStoreAppliesDDL(t *testing.T) {
	_, conn := newTestStore(t)
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS MACHINE_STATE") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected machine_state DDL, got execs: %v", conn.Execs)
	}
}

func TestStoreSaveLoadListDelete(t *testing.T) {
	ctx := context.Background()
	store, conn := newTestStore(t)

	if _, ok, err := store.Load(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing row, ok=%v err=%v", ok, err)
	}
	if err := store.Save(ctx, "m-2", []byte("two")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "m-1", []byte("one")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "m-2", []byte("two-b")); err != nil {
		t.Fatalf("resave: %v", err)
	}
	if rows := conn.Tables["machine_state"]; len(rows) != 2 {
		t.Fatalf("expected upsert to keep one row per machine, got %d", len(rows))
	}

	payload, ok, err := store.Load(ctx, "m-2")
	if err != nil || !ok || string(payload) != "two-b" {
		t.Fatalf("load: payload=%q ok=%v err=%v", payload, ok, err)
	}

	ids, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != "m-1" || ids[1] != "m-2" {
		t.Fatalf("unexpected ids %v", ids)
	}

	if err := store.Delete(ctx, "m-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Load(ctx, "m-1"); ok {
		t.Fatalf("expected m-1 deleted")
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://example"); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestNewStoreDDLFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailExec = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "machine_state") {
		t.Fatalf("expected ddl error, got %v", err)
	}
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	store, conn := newTestStore(t)
	conn.FailExec = true
	if err := store.Save(ctx, "m", []byte("x")); err == nil || !strings.Contains(err.Error(), "upsert m") {
		t.Fatalf("expected upsert error, got %v", err)
	}
	if err := store.Delete(ctx, "m"); err == nil {
		t.Fatalf("expected delete error")
	}
	conn.FailQuery = true
	if _, err := store.List(ctx); err == nil {
		t.Fatalf("expected list error")
	}
	if _, _, err := store.Load(ctx, "m"); err == nil {
		t.Fatalf("expected load error")
	}
}
