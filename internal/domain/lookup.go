package domain

// Lookup table names as they appear in a CBS resource index. They double as
// the foreign-key column names of the typed fact table.
const (
	TableGender      = "Geslacht"
	TablePersonTrait = "Persoonskenmerken"
	TablePeriod      = "Perioden"
)

// LookupEntry is one code→label row of a dimension table.
type LookupEntry struct {
	Key         string  `json:"Key"`
	Title       string  `json:"Title"`
	Description *string `json:"Description,omitempty"`
}

// LookupDocument is the OData envelope of a dimension table.
type LookupDocument struct {
	MetadataURL string        `json:"odata.metadata"`
	Value       []LookupEntry `json:"value"`
}

// LookupTable indexes the entries of one dimension table by Key.
// It is read-only after construction and safe for concurrent use.
type LookupTable struct {
	name    string
	entries []LookupEntry
	byKey   map[string]int
}

// NewLookupTable builds an index over entries. When a key repeats, the first
// entry wins, matching a first-match scan over the source order.
func NewLookupTable(name string, entries []LookupEntry) *LookupTable {
	t := &LookupTable{
		name:    name,
		entries: entries,
		byKey:   make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		if _, dup := t.byKey[e.Key]; dup {
			continue
		}
		t.byKey[e.Key] = i
	}
	return t
}

// Name returns the table name, e.g. "Geslacht".
func (t *LookupTable) Name() string { return t.name }

// Len returns the number of entries, duplicates included.
func (t *LookupTable) Len() int { return len(t.entries) }

// Entries returns the entries in source order.
func (t *LookupTable) Entries() []LookupEntry { return t.entries }

// Get returns the entry with the given key.
func (t *LookupTable) Get(key string) (LookupEntry, bool) {
	i, ok := t.byKey[key]
	if !ok {
		return LookupEntry{}, false
	}
	return t.entries[i], true
}

// Lookups bundles the three dimension tables a fact table references.
type Lookups struct {
	Gender      *LookupTable
	PersonTrait *LookupTable
	Period      *LookupTable
}
