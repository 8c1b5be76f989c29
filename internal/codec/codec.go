// Package codec is the binary persistence format for machine snapshots.
//
// Layout (fixed-width integers are big-endian, lengths and counts are
// unsigned varints):
//
//	magic "MCS1"
//	id, kind                  length-prefixed strings
//	energy                    byte present, u64 amount if present
//	groups                    count, then per group: name, slot count,
//	                          per slot: key, u64 amount
//	faces                     count, then per face: face, mode, category,
//	                          byte hasFilter, filter if present
//	redstone                  byte mode, high bit set when powered
//	security                  byte level, byte hasOwner, 16-byte owner
//
// A key is a category byte followed by length-prefixed id and variant. A
// filter is deny byte, ignore-variant byte, key count and keys.
//
// Decoding stops cleanly when the input ends on a section boundary, leaving
// later sections at their defaults. Bytes after the last known section are
// ignored. Tags this reader does not know decode to defaults: a key with an
// unknown category becomes an empty slot or is dropped from a filter, a face
// with an unknown face, mode or category stays disabled, an unknown
// redstone mode becomes ignore and an unknown access level becomes private.
// Machine status is runtime state and is not encoded.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/multiformats/go-varint"

	"machinecore/pkg/ioconfig"
	"machinecore/pkg/machine"
	"machinecore/pkg/resource"
)

// Magic prefixes every payload.
const Magic = "MCS1"

// poweredBit marks the last recorded redstone signal in the redstone byte.
const poweredBit = 0x80

// ErrMalformed is returned for payloads that cannot be decoded.
var ErrMalformed = errors.New("codec: malformed payload")

// Marshal encodes st.
func Marshal(st machine.State) ([]byte, error) {
	var e encoder
	e.buf.WriteString(Magic)
	e.str(st.ID)
	e.str(st.Kind)

	if st.HasEnergy {
		e.buf.WriteByte(1)
		e.u64(uint64(st.Energy))
	} else {
		e.buf.WriteByte(0)
	}

	e.uvarint(uint64(len(st.Groups)))
	for _, g := range st.Groups {
		e.str(g.Name)
		e.uvarint(uint64(len(g.Slots)))
		for _, s := range g.Slots {
			key := s.Key
			if s.Amount == 0 {
				key = resource.Key{}
			}
			e.key(key)
			e.u64(uint64(s.Amount))
		}
	}

	e.uvarint(uint64(len(st.Faces)))
	for _, f := range st.Faces {
		if !f.Face.Valid() {
			return nil, fmt.Errorf("codec: invalid face %d", f.Face)
		}
		e.buf.WriteByte(byte(f.Face))
		e.buf.WriteByte(byte(f.Config.Mode))
		e.buf.WriteByte(byte(f.Config.Category))
		if f.Config.Filter == nil {
			e.buf.WriteByte(0)
			continue
		}
		e.buf.WriteByte(1)
		e.flag(f.Config.Filter.Deny)
		e.flag(f.Config.Filter.IgnoreVariant)
		e.uvarint(uint64(len(f.Config.Filter.Keys)))
		for _, k := range f.Config.Filter.Keys {
			e.key(k)
		}
	}

	redstone := byte(st.Redstone)
	if st.Powered {
		redstone |= poweredBit
	}
	e.buf.WriteByte(redstone)
	e.buf.WriteByte(byte(st.Security.Level))
	if st.Security.HasOwner() {
		e.buf.WriteByte(1)
		e.buf.Write(st.Security.Owner[:])
	} else {
		e.buf.WriteByte(0)
	}
	return e.buf.Bytes(), nil
}

type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) uvarint(v uint64) { e.buf.Write(varint.ToUvarint(v)) }

func (e *encoder) u64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) flag(v bool) {
	if v {
		e.buf.WriteByte(1)
		return
	}
	e.buf.WriteByte(0)
}

func (e *encoder) str(s string) {
	e.uvarint(uint64(len(s)))
	e.buf.WriteString(s)
}

func (e *encoder) key(k resource.Key) {
	e.buf.WriteByte(byte(k.Category()))
	e.str(k.ID())
	e.uvarint(uint64(len(k.Variant())))
	e.buf.Write(k.Variant())
}

// Unmarshal decodes a payload produced by Marshal, or by an older or newer
// writer of the same format family.
func Unmarshal(data []byte) (machine.State, error) {
	var st machine.State
	if !bytes.HasPrefix(data, []byte(Magic)) {
		return st, fmt.Errorf("%w: bad magic", ErrMalformed)
	}
	d := &decoder{data: data, off: len(Magic)}
	if d.done() {
		return st, nil
	}

	var err error
	if st.ID, err = d.str(); err != nil {
		return st, d.wrap("id", err)
	}
	if st.Kind, err = d.str(); err != nil {
		return st, d.wrap("kind", err)
	}

	if d.done() {
		return st, nil
	}
	if st.HasEnergy, err = d.readBool(); err != nil {
		return st, d.wrap("energy", err)
	}
	if st.HasEnergy {
		v, err := d.u64()
		if err != nil {
			return st, d.wrap("energy", err)
		}
		st.Energy = resource.Amount(v)
	}

	if d.done() {
		return st, nil
	}
	if st.Groups, err = d.groups(); err != nil {
		return st, err
	}

	if d.done() {
		return st, nil
	}
	if st.Faces, err = d.faces(); err != nil {
		return st, err
	}

	if d.done() {
		return st, nil
	}
	b, err := d.readByte()
	if err != nil {
		return st, d.wrap("redstone", err)
	}
	st.Powered = b&poweredBit != 0
	st.Redstone = machine.RedstoneMode(b &^ poweredBit)
	if !st.Redstone.Valid() {
		st.Redstone = machine.RedstoneIgnore
	}

	if d.done() {
		return st, nil
	}
	if st.Security, err = d.security(); err != nil {
		return st, d.wrap("security", err)
	}
	return st, nil
}

type decoder struct {
	data []byte
	off  int
}

var errTruncated = errors.New("truncated")

func (d *decoder) done() bool { return d.off >= len(d.data) }

func (d *decoder) wrap(section string, err error) error {
	return fmt.Errorf("%w: %s at offset %d: %v", ErrMalformed, section, d.off, err)
}

func (d *decoder) readByte() (byte, error) {
	if d.done() {
		return 0, errTruncated
	}
	b := d.data[d.off]
	d.off++
	return b, nil
}

func (d *decoder) readBool() (bool, error) {
	b, err := d.readByte()
	if err != nil {
		return false, err
	}
	if b > 1 {
		return false, fmt.Errorf("invalid bool %d", b)
	}
	return b == 1, nil
}

func (d *decoder) uvarint() (uint64, error) {
	v, n, err := varint.FromUvarint(d.data[d.off:])
	if err != nil {
		return 0, err
	}
	d.off += n
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if len(d.data)-d.off < 8 {
		return 0, errTruncated
	}
	v := binary.BigEndian.Uint64(d.data[d.off:])
	d.off += 8
	return v, nil
}

func (d *decoder) readBytes() ([]byte, error) {
	n, err := d.uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(d.data)-d.off) {
		return nil, errTruncated
	}
	out := d.data[d.off : d.off+int(n)]
	d.off += int(n)
	return out, nil
}

func (d *decoder) str() (string, error) {
	b, err := d.readBytes()
	return string(b), err
}

// count reads a collection length, rejecting counts that could not fit in
// the remaining input at minSize bytes per element.
func (d *decoder) count(minSize int) (int, error) {
	n, err := d.uvarint()
	if err != nil {
		return 0, err
	}
	if n > uint64((len(d.data)-d.off)/minSize) {
		return 0, errTruncated
	}
	return int(n), nil
}

// key reads one key. A category tag this reader does not know yields a
// blank key and known=false once the key's bytes are consumed.
func (d *decoder) key() (k resource.Key, known bool, err error) {
	cat, err := d.readByte()
	if err != nil {
		return resource.Key{}, false, err
	}
	id, err := d.str()
	if err != nil {
		return resource.Key{}, false, err
	}
	variant, err := d.readBytes()
	if err != nil {
		return resource.Key{}, false, err
	}
	category := resource.Category(cat)
	if !category.Valid() {
		return resource.Key{}, false, nil
	}
	if category == resource.CategoryNone && id == "" && len(variant) == 0 {
		return resource.Key{}, true, nil
	}
	k, err = resource.NewKey(category, id, variant)
	return k, err == nil, err
}

func (d *decoder) groups() ([]machine.GroupState, error) {
	// name length + slot count
	n, err := d.count(2)
	if err != nil {
		return nil, d.wrap("groups", err)
	}
	groups := make([]machine.GroupState, 0, n)
	for i := 0; i < n; i++ {
		name, err := d.str()
		if err != nil {
			return nil, d.wrap("group name", err)
		}
		// key header (3 bytes) + amount
		slots, err := d.count(11)
		if err != nil {
			return nil, d.wrap("group "+name, err)
		}
		g := machine.GroupState{Name: name, Slots: make([]machine.SlotState, slots)}
		for j := range g.Slots {
			k, known, err := d.key()
			if err != nil {
				return nil, d.wrap(fmt.Sprintf("group %s slot %d key", name, j), err)
			}
			amt, err := d.u64()
			if err != nil {
				return nil, d.wrap(fmt.Sprintf("group %s slot %d amount", name, j), err)
			}
			if !known {
				// resource from a newer writer: the slot loads empty
				continue
			}
			if k.IsBlank() != (amt == 0) {
				return nil, d.wrap(fmt.Sprintf("group %s slot %d", name, j), errors.New("key and amount disagree"))
			}
			g.Slots[j] = machine.SlotState{Key: k, Amount: resource.Amount(amt)}
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (d *decoder) faces() ([]machine.FaceState, error) {
	n, err := d.count(4)
	if err != nil {
		return nil, d.wrap("faces", err)
	}
	var faces []machine.FaceState
	for i := 0; i < n; i++ {
		var hdr [4]byte
		for j := range hdr {
			if hdr[j], err = d.readByte(); err != nil {
				return nil, d.wrap("face", err)
			}
		}
		fc := ioconfig.FaceConfig{
			Mode:     ioconfig.Mode(hdr[1]),
			Category: resource.Category(hdr[2]),
		}
		switch hdr[3] {
		case 0:
		case 1:
			f, err := d.filter()
			if err != nil {
				return nil, d.wrap("face filter", err)
			}
			fc.Filter = f
		default:
			return nil, d.wrap("face", fmt.Errorf("invalid filter flag %d", hdr[3]))
		}
		face := ioconfig.Face(hdr[0])
		// unknown faces, modes and categories leave the face disabled
		if !face.Valid() || !fc.Mode.Valid() || !fc.Category.Valid() {
			continue
		}
		faces = append(faces, machine.FaceState{Face: face, Config: fc})
	}
	return faces, nil
}

func (d *decoder) filter() (*resource.Filter, error) {
	deny, err := d.readBool()
	if err != nil {
		return nil, err
	}
	ignore, err := d.readBool()
	if err != nil {
		return nil, err
	}
	n, err := d.count(3)
	if err != nil {
		return nil, err
	}
	f := &resource.Filter{Deny: deny, IgnoreVariant: ignore, Keys: make([]resource.Key, 0, n)}
	for i := 0; i < n; i++ {
		k, known, err := d.key()
		if err != nil {
			return nil, err
		}
		if !known {
			continue
		}
		if k.IsBlank() {
			return nil, errors.New("blank filter key")
		}
		f.Keys = append(f.Keys, k)
	}
	return f, nil
}

func (d *decoder) security() (machine.Security, error) {
	var sec machine.Security
	level, err := d.readByte()
	if err != nil {
		return sec, err
	}
	sec.Level = machine.AccessLevel(level)
	if !sec.Level.Valid() {
		// an access level from a newer writer fails closed
		sec.Level = machine.AccessPrivate
	}
	hasOwner, err := d.readBool()
	if err != nil || !hasOwner {
		return sec, err
	}
	if len(d.data)-d.off < 16 {
		return sec, errTruncated
	}
	owner, err := uuid.FromBytes(d.data[d.off : d.off+16])
	if err != nil {
		return sec, err
	}
	d.off += 16
	sec.Owner = owner
	return sec, nil
}
