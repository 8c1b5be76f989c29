package resource

// Filter is a serialisable predicate over keys: an allow list, or a deny list
// when Deny is set. With IgnoreVariant, keys are compared on category and id
// only. A nil *Filter matches everything.
type Filter struct {
	Deny          bool
	IgnoreVariant bool
	Keys          []Key
}

// AllowOnly returns a filter accepting exactly the given keys.
func AllowOnly(keys ...Key) *Filter {
	return &Filter{Keys: append([]Key(nil), keys...)}
}

// DenyKeys returns a filter rejecting the given keys.
func DenyKeys(keys ...Key) *Filter {
	return &Filter{Deny: true, Keys: append([]Key(nil), keys...)}
}

// Match reports whether k passes the filter.
func (f *Filter) Match(k Key) bool {
	if f == nil {
		return true
	}
	listed := false
	for _, candidate := range f.Keys {
		if f.IgnoreVariant {
			if candidate.Base() == k.Base() {
				listed = true
				break
			}
			continue
		}
		if candidate == k {
			listed = true
			break
		}
	}
	return listed != f.Deny
}

// Clone returns a deep copy of f.
func (f *Filter) Clone() *Filter {
	if f == nil {
		return nil
	}
	cp := *f
	cp.Keys = append([]Key(nil), f.Keys...)
	return &cp
}

// Equal reports whether two filters have the same definition.
func (f *Filter) Equal(other *Filter) bool {
	if f == nil || other == nil {
		return f == other
	}
	if f.Deny != other.Deny || f.IgnoreVariant != other.IgnoreVariant || len(f.Keys) != len(other.Keys) {
		return false
	}
	for i := range f.Keys {
		if f.Keys[i] != other.Keys[i] {
			return false
		}
	}
	return true
}
