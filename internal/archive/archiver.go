package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/klauspost/compress/zstd"
)

const (
	keyPrefix   = "machines/"
	keySuffix   = ".mcs.zst"
	contentType = "application/zstd"

	metaMachineID = "machine-id"
	metaRawSize   = "raw-size"
)

// ErrNoSnapshot is returned by Latest when a machine has no archived
// snapshot.
var ErrNoSnapshot = errors.New("archive: no snapshot for machine")

// Archiver writes zstd-compressed snapshot payloads to a Store under
// machines/<id>/<unix-nanos>.mcs.zst. The timestamp is zero padded so keys
// sort chronologically.
type Archiver struct {
	store Store
	clock clock.Clock
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

// ArchiverOption customises an Archiver.
type ArchiverOption func(*Archiver)

// WithClock sets the time source used for snapshot keys.
func WithClock(c clock.Clock) ArchiverOption {
	return func(a *Archiver) {
		if c != nil {
			a.clock = c
		}
	}
}

// NewArchiver wraps store.
func NewArchiver(store Store, opts ...ArchiverOption) (*Archiver, error) {
	if store == nil {
		return nil, fmt.Errorf("archive: nil store")
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("archive: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("archive: zstd decoder: %w", err)
	}
	a := &Archiver{store: store, clock: clock.New(), enc: enc, dec: dec}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Store returns the wrapped blob store.
func (a *Archiver) Store() Store { return a.store }

// Key returns the object key for a snapshot of id taken at unixNanos.
func Key(id string, unixNanos int64) string {
	return fmt.Sprintf("%s%s/%019d%s", keyPrefix, id, unixNanos, keySuffix)
}

// ParseKey extracts the machine id and timestamp from a snapshot key.
func ParseKey(key string) (string, int64, error) {
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return "", 0, fmt.Errorf("archive: key %q outside %s", key, keyPrefix)
	}
	rest, ok = strings.CutSuffix(rest, keySuffix)
	if !ok {
		return "", 0, fmt.Errorf("archive: key %q lacks %s", key, keySuffix)
	}
	idx := strings.LastIndexByte(rest, '/')
	if idx <= 0 {
		return "", 0, fmt.Errorf("archive: malformed key %q", key)
	}
	ts, err := strconv.ParseInt(rest[idx+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("archive: malformed timestamp in %q: %w", key, err)
	}
	return rest[:idx], ts, nil
}

func checkID(id string) error {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return fmt.Errorf("archive: invalid machine id %q", id)
	}
	return nil
}

// Put compresses payload and stores it as a new snapshot of id.
func (a *Archiver) Put(ctx context.Context, id string, payload []byte) (Info, error) {
	if err := checkID(id); err != nil {
		return Info{}, err
	}
	compressed := a.enc.EncodeAll(payload, make([]byte, 0, len(payload)/2))
	key := Key(id, a.clock.Now().UnixNano())
	info, err := a.store.Put(ctx, key, bytes.NewReader(compressed), PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			metaMachineID: id,
			metaRawSize:   strconv.Itoa(len(payload)),
		},
	})
	if err != nil {
		return Info{}, fmt.Errorf("archive %s: %w", id, err)
	}
	return info, nil
}

// Fetch reads and decompresses the snapshot stored at key.
func (a *Archiver) Fetch(ctx context.Context, key string) ([]byte, error) {
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	compressed, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	payload, err := a.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", key, err)
	}
	return payload, nil
}

// List returns the snapshots of id, oldest first.
func (a *Archiver) List(ctx context.Context, id string) ([]Info, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	infos, err := a.store.List(ctx, keyPrefix+id+"/")
	if err != nil {
		return nil, err
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Key, keySuffix) {
			out = append(out, info)
		}
	}
	return out, nil
}

// Latest returns the newest snapshot of id.
func (a *Archiver) Latest(ctx context.Context, id string) (Info, []byte, error) {
	infos, err := a.List(ctx, id)
	if err != nil {
		return Info{}, nil, err
	}
	if len(infos) == 0 {
		return Info{}, nil, fmt.Errorf("%s: %w", id, ErrNoSnapshot)
	}
	info := infos[len(infos)-1]
	payload, err := a.Fetch(ctx, info.Key)
	if err != nil {
		return Info{}, nil, err
	}
	return info, payload, nil
}

// Prune deletes all but the newest keep snapshots of id and reports how many
// were removed.
func (a *Archiver) Prune(ctx context.Context, id string, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("archive: negative keep %d", keep)
	}
	infos, err := a.List(ctx, id)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := 0; i < len(infos)-keep; i++ {
		ok, err := a.store.Delete(ctx, infos[i].Key)
		if err != nil {
			return removed, fmt.Errorf("prune %s: %w", infos[i].Key, err)
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// Close releases the codec resources.
func (a *Archiver) Close() error {
	a.dec.Close()
	return a.enc.Close()
}
