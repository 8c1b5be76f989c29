package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"machinecore/internal/codec"
	"machinecore/internal/config"
	"machinecore/internal/core"
	"machinecore/pkg/machine"
	"machinecore/pkg/resource"
	"machinecore/pkg/storage"
	"machinecore/pkg/transaction"
)

func setupEnv(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MACHINECORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("MACHINECORE_SQLITE_PATH", filepath.Join(dir, "state.db"))
	t.Setenv("MACHINECORE_ARCHIVE_DRIVER", "fs")
	t.Setenv("MACHINECORE_ARCHIVE_FS_ROOT", filepath.Join(dir, "archive"))
	t.Setenv("MACHINECORE_LOG_LEVEL", "error")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func seed(t *testing.T, cfg config.Config, id string, amount resource.Amount) {
	t.Helper()
	m, err := machine.New(machine.Spec{
		ID:     id,
		Kind:   "chest",
		Groups: []machine.GroupSpec{{Name: "items", Category: resource.CategoryItem, Slots: []storage.SlotConfig{{Capacity: 64}}}},
	})
	if err != nil {
		t.Fatalf("machine: %v", err)
	}
	if err := m.Tick(func(tx *transaction.Context) error {
		return m.Group("items").InsertExact(tx, resource.Item("cobblestone"), amount)
	}); err != nil {
		t.Fatalf("tick: %v", err)
	}
	payload, err := codec.Marshal(m.State())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	store, err := core.OpenStateStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.Save(context.Background(), id, payload); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := cli(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestListDumpDelete(t *testing.T) {
	cfg := setupEnv(t)
	seed(t, cfg, "chest-b", 3)
	seed(t, cfg, "chest-a", 5)

	code, out, errOut := runCLI(t, "list")
	if code != 0 || out != "chest-a\nchest-b\n" {
		t.Fatalf("list: code=%d out=%q err=%q", code, out, errOut)
	}

	code, out, errOut = runCLI(t, "dump", "chest-a")
	if code != 0 {
		t.Fatalf("dump: code=%d err=%q", code, errOut)
	}
	var st machine.State
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode dump: %v\n%s", err, out)
	}
	if st.ID != "chest-a" || st.Kind != "chest" || st.Groups[0].Slots[0].Amount != 5 {
		t.Fatalf("unexpected dump %+v", st)
	}

	if code, _, _ := runCLI(t, "dump", "missing"); code != 1 {
		t.Fatalf("expected missing dump to fail, got %d", code)
	}
	if code, _, _ := runCLI(t, "delete", "chest-b"); code != 0 {
		t.Fatalf("delete failed")
	}
	if _, out, _ := runCLI(t, "list"); out != "chest-a\n" {
		t.Fatalf("expected chest-b deleted, got %q", out)
	}
}

func TestArchiveHistoryRestorePrune(t *testing.T) {
	cfg := setupEnv(t)
	seed(t, cfg, "chest", 10)

	code, firstKey, errOut := runCLI(t, "archive", "chest")
	if code != 0 || !strings.HasPrefix(firstKey, "machines/chest/") {
		t.Fatalf("archive: code=%d out=%q err=%q", code, firstKey, errOut)
	}
	firstKey = strings.TrimSpace(firstKey)

	seed(t, cfg, "chest", 20)
	if code, _, errOut := runCLI(t, "archive", "chest"); code != 0 {
		t.Fatalf("second archive: %q", errOut)
	}
	_, history, _ := runCLI(t, "history", "chest")
	if lines := strings.Split(strings.TrimSpace(history), "\n"); len(lines) != 2 {
		t.Fatalf("expected two snapshots, got %q", history)
	}

	// restore the older snapshot explicitly
	if code, _, errOut := runCLI(t, "restore", "chest", firstKey); code != 0 {
		t.Fatalf("restore: %q", errOut)
	}
	_, out, _ := runCLI(t, "dump", "chest")
	var st machine.State
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Groups[0].Slots[0].Amount != 10 {
		t.Fatalf("expected older snapshot restored, got %+v", st.Groups[0].Slots[0])
	}

	if code, _, _ := runCLI(t, "restore", "other", firstKey); code != 1 {
		t.Fatalf("expected foreign snapshot to be refused")
	}
	if code, _, _ := runCLI(t, "restore", "chest"); code != 0 {
		t.Fatalf("restore latest failed")
	}

	code, out, _ = runCLI(t, "prune", "chest", "1")
	if code != 0 || strings.TrimSpace(out) != "removed 1" {
		t.Fatalf("prune: %d %q", code, out)
	}
	if code, _, _ := runCLI(t, "prune", "chest", "x"); code != 1 {
		t.Fatalf("expected bad keep to fail")
	}
}

func TestUsageAndConfigErrors(t *testing.T) {
	setupEnv(t)
	for _, args := range [][]string{{}, {"bogus"}, {"dump"}, {"list", "extra"}, {"prune", "chest"}, {"-nope"}} {
		if code, _, _ := runCLI(t, args...); code != 2 {
			t.Fatalf("expected usage exit for %v, got %d", args, code)
		}
	}

	t.Setenv("MACHINECORE_ARCHIVE_DRIVER", "none")
	if code, _, errOut := runCLI(t, "history", "chest"); code != 1 || !strings.Contains(errOut, "archive driver") {
		t.Fatalf("expected archive disabled error, got %d %q", code, errOut)
	}

	t.Setenv("MACHINECORE_STORAGE_DRIVER", "floppy")
	if code, _, _ := runCLI(t, "list"); code != 1 {
		t.Fatalf("expected config error")
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	setupEnv(t)
	var codes []int
	old := exitFunc
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc = old }()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"machinectl", "list"}
	main()
	os.Args = []string{"machinectl"}
	main()
	if len(codes) != 2 || codes[0] != 0 || codes[1] != 2 {
		t.Fatalf("unexpected exit codes %v", codes)
	}
}
