// Command machinectl inspects and maintains persisted machine snapshots: it
// lists stored machines, dumps a snapshot as JSON and moves snapshots
// between the state store and the archive.
//
// Backends are selected with the MACHINECORE_* environment variables.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"machinecore/internal/archive"
	"machinecore/internal/codec"
	"machinecore/internal/config"
	"machinecore/internal/core"
	"machinecore/internal/logging"
)

var (
	exitFunc   = os.Exit
	loadConfig = config.Load
)

const usage = `usage: machinectl <command> [args]

commands:
  list                 list machine ids in the state store
  dump <id>            print the stored snapshot of id as JSON
  delete <id>          delete the stored snapshot of id
  archive <id>         copy the stored snapshot of id to the archive
  history <id>         list archived snapshots of id
  restore <id> [key]   write an archived snapshot (default newest) back to the state store
  prune <id> <keep>    delete all but the newest keep archived snapshots of id
`

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("machinectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = fmt.Fprint(stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	cfg, err := loadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "machinectl: %v\n", err)
		return 1
	}
	zl, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "machinectl: %v\n", err)
		return 1
	}
	log := logging.NewAdapter(zl)
	defer func() { _ = log.Sync() }()

	c := &command{cfg: cfg, log: log.With("command", fs.Arg(0)), out: stdout}
	if err := c.dispatch(context.Background(), fs.Arg(0), fs.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
			return 2
		}
		_, _ = fmt.Fprintf(stderr, "machinectl: %v\n", err)
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

type command struct {
	cfg config.Config
	log *logging.Adapter
	out io.Writer
}

func (c *command) dispatch(ctx context.Context, name string, args []string) (err error) {
	need := map[string]int{"list": 0, "dump": 1, "delete": 1, "archive": 1, "history": 1, "restore": 1, "prune": 2}
	n, ok := need[name]
	if !ok || len(args) < n || (name != "restore" && len(args) > n) || len(args) > 2 {
		return errUsage
	}
	store, err := core.OpenStateStore(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	switch name {
	case "list":
		return c.list(ctx, store)
	case "dump":
		return c.dump(ctx, store, args[0])
	case "delete":
		if err := store.Delete(ctx, args[0]); err != nil {
			return err
		}
		c.log.Info("snapshot deleted", "machine", args[0])
		return nil
	}

	archiver, err := core.OpenArchiver(ctx, c.cfg, clock.New())
	if err != nil {
		return err
	}
	if archiver == nil {
		return fmt.Errorf("archive driver is %q", c.cfg.ArchiveDriver)
	}
	defer func() { err = multierr.Append(err, archiver.Close()) }()

	switch name {
	case "archive":
		return c.archive(ctx, store, archiver, args[0])
	case "history":
		return c.history(ctx, archiver, args[0])
	case "restore":
		key := ""
		if len(args) == 2 {
			key = args[1]
		}
		return c.restore(ctx, store, archiver, args[0], key)
	default:
		keep, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("keep: %w", err)
		}
		removed, err := archiver.Prune(ctx, args[0], keep)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(c.out, "removed %d\n", removed)
		return err
	}
}

func (c *command) list(ctx context.Context, store core.StateStore) error {
	ids, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := fmt.Fprintln(c.out, id); err != nil {
			return err
		}
	}
	return nil
}

func loadPayload(ctx context.Context, store core.StateStore, id string) ([]byte, error) {
	payload, ok, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return payload, nil
}

func (c *command) dump(ctx context.Context, store core.StateStore, id string) error {
	payload, err := loadPayload(ctx, store, id)
	if err != nil {
		return err
	}
	st, err := codec.Unmarshal(payload)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

func (c *command) archive(ctx context.Context, store core.StateStore, archiver *archive.Archiver, id string) error {
	payload, err := loadPayload(ctx, store, id)
	if err != nil {
		return err
	}
	info, err := archiver.Put(ctx, id, payload)
	if err != nil {
		return err
	}
	c.log.Info("snapshot archived", "machine", id, "key", info.Key, "size", info.Size)
	_, err = fmt.Fprintln(c.out, info.Key)
	return err
}

func (c *command) history(ctx context.Context, archiver *archive.Archiver, id string) error {
	infos, err := archiver.List(ctx, id)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if _, err := fmt.Fprintf(c.out, "%s\t%d\n", info.Key, info.Size); err != nil {
			return err
		}
	}
	return nil
}

func (c *command) restore(ctx context.Context, store core.StateStore, archiver *archive.Archiver, id, key string) error {
	var payload []byte
	var err error
	if key == "" {
		var info archive.Info
		info, payload, err = archiver.Latest(ctx, id)
		key = info.Key
	} else {
		owner, _, perr := archive.ParseKey(key)
		if perr != nil {
			return perr
		}
		if owner != id {
			return fmt.Errorf("snapshot %s belongs to %s", key, owner)
		}
		payload, err = archiver.Fetch(ctx, key)
	}
	if err != nil {
		return err
	}
	if _, err := codec.Unmarshal(payload); err != nil {
		return fmt.Errorf("snapshot %s: %w", key, err)
	}
	if err := store.Save(ctx, id, payload); err != nil {
		return err
	}
	c.log.Info("snapshot restored", "machine", id, "key", key)
	_, err = fmt.Fprintln(c.out, key)
	return err
}
