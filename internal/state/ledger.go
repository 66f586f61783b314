package state

import (
	"sort"
	"sync"
)

// Record is one policy item applied to one module.
type Record struct {
	// Module is the name of the module the item was applied to
	Module string `json:"module"`

	// Item is the policy item name ("attributes", "output-dir")
	Item string `json:"item"`

	// Value is the rendered value that was written
	Value string `json:"value"`

	// Checkpoint is the settle checkpoint that applied the item
	Checkpoint int `json:"checkpoint"`

	// Seq is the ledger-wide application order, starting at 1
	Seq int `json:"seq"`
}

type key struct {
	module string
	item   string
}

// Ledger tracks applied records. The zero value is not usable; use NewLedger.
type Ledger struct {
	mu      sync.RWMutex
	records map[key]Record
	seq     int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{records: make(map[key]Record)}
}

// Applied reports whether item has been applied to module.
func (l *Ledger) Applied(module, item string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.records[key{module, item}]
	return ok
}

// Mark records an application. If the (module, item) pair is already recorded
// the existing record is returned unchanged together with false.
func (l *Ledger) Mark(module, item, value string, checkpoint int) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{module, item}
	if existing, ok := l.records[k]; ok {
		return existing, false
	}
	l.seq++
	r := Record{
		Module:     module,
		Item:       item,
		Value:      value,
		Checkpoint: checkpoint,
		Seq:        l.seq,
	}
	l.records[k] = r
	return r, true
}

// Has reports whether any item has been applied to module.
func (l *Ledger) Has(module string) bool {
	return len(l.ForModule(module)) > 0
}

// ForModule returns the records of module in application order.
func (l *Ledger) ForModule(module string) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Record
	for k, r := range l.records {
		if k.module == module {
			out = append(out, r)
		}
	}
	sortBySeq(out)
	return out
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Snapshot returns every record in application order.
func (l *Ledger) Snapshot() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, r)
	}
	sortBySeq(out)
	return out
}

func sortBySeq(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Seq < records[j].Seq
	})
}
