package scanner

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/tagctl/internal/device"
)

// Entry is the folded state of one peripheral
type Entry struct {
	Address device.Address
	Name    string // raw advertised name
	RSSI    int    // dBm, per the merge policy
	Label   string // from the known set, if any
	Seen    int    // admitted advertisements
}

// Change reports what an observation did to the table
type Change int

const (
	Ignored Change = iota
	Inserted
	Updated
	Unchanged
)

func (c Change) String() string {
	switch c {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	default:
		return "ignored"
	}
}

// MergeFunc folds a later advertisement into an existing entry and reports
// whether the entry changed. First sightings are always inserted.
type MergeFunc func(prev Entry, adv device.Advertisement) (Entry, bool)

// BestSignal keeps the strongest RSSI seen; ties do not update
func BestSignal(prev Entry, adv device.Advertisement) (Entry, bool) {
	if adv.RSSI > prev.RSSI {
		prev.RSSI = adv.RSSI
		return prev, true
	}
	return prev, false
}

// FirstSighting reports each peripheral once and never updates it
func FirstSighting(prev Entry, _ device.Advertisement) (Entry, bool) {
	return prev, false
}

// Filter decides which advertisements are admitted
type Filter struct {
	// NamePrefix is matched case-sensitively against the raw, untrimmed name.
	// An advertisement without a name is never admitted, whatever the prefix.
	NamePrefix string
	// AddressType is the required address type unless AnyAddressType is set
	AddressType    device.AddressType
	AnyAddressType bool
}

// Admit reports whether adv passes the filter
func (f Filter) Admit(adv device.Advertisement) bool {
	if !adv.HasName || !strings.HasPrefix(adv.Name, f.NamePrefix) {
		return false
	}
	if !f.AnyAddressType && adv.Address.Type != f.AddressType {
		return false
	}
	return true
}

// Table is the ScanTable: one entry per admitted address, in first-sighting order
type Table struct {
	filter  Filter
	known   map[device.Address]string
	merge   MergeFunc
	entries *orderedmap.OrderedMap[device.Address, Entry]
}

// TableOption configures a Table
type TableOption func(*Table)

// WithKnown restricts the table to the given addresses and labels their entries
func WithKnown(known map[device.Address]string) TableOption {
	return func(t *Table) {
		t.known = known
	}
}

// WithMerge sets the merge policy (BestSignal by default)
func WithMerge(merge MergeFunc) TableOption {
	return func(t *Table) {
		t.merge = merge
	}
}

// NewTable creates an empty table
func NewTable(filter Filter, opts ...TableOption) *Table {
	t := &Table{
		filter:  filter,
		merge:   BestSignal,
		entries: orderedmap.New[device.Address, Entry](),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe applies the filter, the known set and the merge policy to adv
func (t *Table) Observe(adv device.Advertisement) (Entry, Change) {
	if !t.filter.Admit(adv) {
		return Entry{}, Ignored
	}

	var label string
	if t.known != nil {
		l, ok := t.known[adv.Address]
		if !ok {
			return Entry{}, Ignored
		}
		label = l
	}

	prev, ok := t.entries.Get(adv.Address)
	if !ok {
		e := Entry{
			Address: adv.Address,
			Name:    adv.Name,
			RSSI:    adv.RSSI,
			Label:   label,
			Seen:    1,
		}
		t.entries.Set(adv.Address, e)
		return e, Inserted
	}

	prev.Seen++
	next, changed := t.merge(prev, adv)
	t.entries.Set(adv.Address, next)
	if changed {
		return next, Updated
	}
	return next, Unchanged
}

// Get returns the entry for addr
func (t *Table) Get(addr device.Address) (Entry, bool) {
	return t.entries.Get(addr)
}

// Len returns the number of entries
func (t *Table) Len() int {
	return t.entries.Len()
}

// Entries returns the entries in first-sighting order
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, t.entries.Len())
	for pair := t.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}
