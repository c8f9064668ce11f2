package table

import (
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
)

// importance decides which columns survive when the terminal is too narrow
var importance = []string{
	KeyDisplayName,
	KeyLocation,

	KeyName,
	"NAME",
	"KNAME",
	"by-vdev",
	KeyZPath,
	"MOUNTPOINT",
	KeySize,
	"SIZE",
	"FSTYPE",
	"HCTL",
	"MAJ:MIN",
	"TRAN",
	"RA",
	"RQ-SIZE",
	"OWNER",
	"GROUP",
	"MODE",
	"MODEL",
	"RO",
	"RM",
	"by-id",
	"by-partlabel",
	"by-path",
	"UUID",
	"ALIGNMENT",
	"MIN-IO",
	"OPT-IO",
	"TYPE",
	"ROTA",
	"PHY-SEC",
	"LOG-SEC",
	"WWN",
	"PARTUUID",
	"PARTTYPE",
	"PARTLABEL",
	"SERIAL",
	"DISC-ALN", "DISC-GRAN", "DISC-MAX", "DISC-ZERO",
	"STATE",
	"PARTFLAGS",
	"LABEL",
	"SCHED",
	"VENDOR",
	"RAND",
	"REV",
	"WSAME",
}

// displayOrder decides where the surviving columns appear, left to right
var displayOrder = indexOf([]string{
	KeyDisplayName,
	"by-vdev",
	KeyLocation,

	KeyName,
	"NAME",
	"KNAME",
	KeyZPath,
	"MOUNTPOINT",
	"FSTYPE",
	"SIZE",
	"TRAN",
	"HCTL",
	"MAJ:MIN",
	"OWNER",
	"GROUP",
	"MODE",
	"TYPE",
	"ROTA",
})

// defaultOmit holds keys folded into displayname and location, plus
// bookkeeping nobody reads
var defaultOmit = []string{
	"NAME", "PKNAME", KeyName, KeyZPath, "MOUNTPOINT", "TYPE", "by-vdev",
	KeyHolders, KeyPartitions, KeyMajor, KeyMinor, KeySize, "MODEL",
}

// duplicates pairs an alias with the field it usually repeats
var duplicates = [][2]string{
	{"KNAME", "NAME"},
	{"by-partuuid", "PARTUUID"},
	{"by-uuid", "UUID"},
	{"by-partlabel", "PARTLABEL"},
}

// alwaysInteresting columns are never folded into the uniform banner
var alwaysInteresting = []string{"SIZE"}

func indexOf(keys []string) map[string]int {
	m := make(map[string]int, len(keys))
	for i, k := range keys {
		m[k] = i
	}
	return m
}

// PlanOptions are the caller's column preferences
type PlanOptions struct {
	Include []string
	Exclude []string

	// Width is the character budget for a line; 0 means unlimited
	Width int
}

// Column is one planned table column
type Column struct {
	Key   string
	Width int
}

// Fact is a key/value line of the "every device has" banner
type Fact struct {
	Key   string
	Value string
}

// Plan is the outcome of column planning
type Plan struct {
	Columns []Column

	// Aliases are alias keys dropped because they repeat another field
	Aliases []Fact

	// Uniform are keys with one shared non-empty value across every row
	Uniform []Fact

	// Overflow are keys that did not fit the width budget, sorted
	Overflow []string

	// Unranked are keys with no place in the importance ranking, sorted
	Unranked []string
}

// Keys returns the planned column keys in display order
func (p Plan) Keys() []string {
	keys := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		keys[i] = c.Key
	}
	return keys
}

// Header is the label printed above a column
func Header(key string) string {
	switch {
	case key == KeyDisplayName:
		return "DEVICE"
	case key == KeyLocation:
		return ""
	case strings.HasPrefix(key, "by-"):
		return key[len("by-"):]
	}
	return key
}

// Cell is the text of key for r before alignment
func Cell(r *Row, key string) string {
	v, _ := r.Lookup(key)
	if key == "MAJ:MIN" {
		return alignMajMin(v)
	}
	return v
}

// alignMajMin lines up the colons: "  8:0  ", "259:3  "
func alignMajMin(v string) string {
	if v == "" {
		return v
	}
	if i := strings.IndexByte(v, ':'); i >= 0 && i < 3 {
		v = strings.Repeat(" ", 3-i) + v
	}
	if n := runewidth.StringWidth(v); n < 7 {
		v += strings.Repeat(" ", 7-n)
	}
	return v
}

func columnWidth(key string, rows []*Row) int {
	w := runewidth.StringWidth(Header(key))
	for _, r := range rows {
		if n := runewidth.StringWidth(Cell(r, key)); n > w {
			w = n
		}
	}
	return w
}

// PlanColumns chooses, packs and orders the columns for rows
func PlanColumns(rows []*Row, opts PlanOptions) Plan {
	var plan Plan
	if len(rows) == 0 {
		return plan
	}

	universe := make(map[string]bool)
	for _, r := range rows {
		for _, k := range r.Keys() {
			universe[k] = true
		}
	}

	included := make(map[string]bool, len(opts.Include))
	for _, k := range opts.Include {
		included[k] = true
	}
	omit := make(map[string]bool)
	for _, k := range defaultOmit {
		omit[k] = true
	}
	for _, k := range opts.Exclude {
		omit[k] = true
	}
	for k := range included {
		delete(omit, k)
	}

	for _, pair := range duplicates {
		alias, ref := pair[0], pair[1]
		if !universe[alias] || included[alias] || omit[alias] {
			continue
		}
		same := true
		for _, r := range rows {
			a, _ := r.Lookup(alias)
			b, _ := r.Lookup(ref)
			if a != b {
				same = false
				break
			}
		}
		if same {
			plan.Aliases = append(plan.Aliases, Fact{Key: alias, Value: "<" + ref + ">"})
			omit[alias] = true
		}
	}

	interesting := make(map[string]bool)
	for _, k := range alwaysInteresting {
		interesting[k] = true
	}
	for k := range included {
		interesting[k] = true
	}

	ranked := make(map[string]bool, len(importance))
	for _, k := range importance {
		ranked[k] = true
	}
	for k := range universe {
		if !ranked[k] && !omit[k] {
			plan.Unranked = append(plan.Unranked, k)
		}
	}
	sort.Strings(plan.Unranked)

	var packed []Column
	running, overflowing := 0, false
	for _, key := range candidates(opts.Include, plan.Unranked) {
		if omit[key] || (!universe[key] && !included[key]) {
			continue
		}
		if !interesting[key] && len(rows) > 1 {
			if v, uniform := uniformValue(rows, key); uniform {
				if v != "" {
					plan.Uniform = append(plan.Uniform, Fact{Key: key, Value: v})
				}
				continue
			}
		}

		w := columnWidth(key, rows)
		if opts.Width > 0 && (overflowing || running+w > opts.Width) {
			overflowing = true
			plan.Overflow = append(plan.Overflow, key)
			continue
		}
		running += w + 1
		packed = append(packed, Column{Key: key, Width: w})
	}
	sort.Strings(plan.Overflow)

	sort.SliceStable(packed, func(i, j int) bool {
		return displayLess(packed[i], packed[j])
	})
	plan.Columns = packed
	return plan
}

// candidates is the importance ranking with includes promoted to just after
// the display name and location, followed by the unranked keys
func candidates(include, unranked []string) []string {
	out := make([]string, 0, len(importance)+len(include)+len(unranked))
	seen := make(map[string]bool)
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	add(KeyDisplayName)
	add(KeyLocation)
	for _, k := range include {
		add(k)
	}
	for _, k := range importance {
		add(k)
	}
	for _, k := range unranked {
		add(k)
	}
	return out
}

func uniformValue(rows []*Row, key string) (string, bool) {
	first := Cell(rows[0], key)
	for _, r := range rows[1:] {
		if Cell(r, key) != first {
			return "", false
		}
	}
	return first, true
}

// ranked display columns first, the rest narrowest first then by name
func displayLess(a, b Column) bool {
	ra, aRanked := displayOrder[a.Key]
	rb, bRanked := displayOrder[b.Key]
	switch {
	case aRanked && bRanked:
		return ra < rb
	case aRanked != bRanked:
		return aRanked
	case a.Width != b.Width:
		return a.Width < b.Width
	}
	return a.Key < b.Key
}
