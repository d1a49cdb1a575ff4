package recipient

// List is the ordered recipient list edited by the wizard.
type List []Record

// Clone returns a deep copy.
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	for i, r := range l {
		if r.BirthDate != nil {
			bd := *r.BirthDate
			r.BirthDate = &bd
		}
		out[i] = r
	}
	return out
}

// Index returns the position of key or -1.
func (l List) Index(key string) int {
	for i := range l {
		if l[i].Key == key {
			return i
		}
	}
	return -1
}

// Find returns the record with key.
func (l List) Find(key string) (Record, bool) {
	if i := l.Index(key); i >= 0 {
		return l[i], true
	}
	return Record{}, false
}

// Upsert replaces the record with the same key in place, or appends it.
func (l List) Upsert(r Record) List {
	out := l.Clone()
	if i := out.Index(r.Key); i >= 0 {
		out[i] = r
		return out
	}
	return append(out, r)
}

// Remove drops the record with key. Unknown keys leave the list unchanged.
func (l List) Remove(key string) List {
	i := l.Index(key)
	if i < 0 {
		return l.Clone()
	}
	out := make(List, 0, len(l)-1)
	out = append(out, l[:i]...)
	out = append(out, l[i+1:]...)
	return out.Clone()
}

// TotalTrees sums GiftedTreeCount across the list.
func (l List) TotalTrees() int {
	total := 0
	for _, r := range l {
		total += r.GiftedTreeCount
	}
	return total
}

// Summary is the aggregate view of a list against a declared tree count.
type Summary struct {
	Count               int
	Trees               int
	Declared            int
	Overallocated       bool
	Invalid             int
	MissingImages       int
	ShowExtendedColumns bool
}

// Summarize reports allocation and validation status for display.
func (l List) Summarize(declared int) Summary {
	s := Summary{Count: len(l), Trees: l.TotalTrees(), Declared: declared}
	s.Overallocated = s.Trees > declared
	for _, r := range l {
		if r.HasValidationError {
			s.Invalid++
		}
		if r.ImageMissing {
			s.MissingImages++
		}
		if r.AssigneeDiffers() {
			s.ShowExtendedColumns = true
		}
	}
	return s
}

// Blocking returns the records that prevent the wizard from advancing.
func (l List) Blocking() []Record {
	var out []Record
	for _, r := range l {
		if r.Blocking() {
			out = append(out, r)
		}
	}
	return out
}
