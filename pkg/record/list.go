package record

// List is an ordered collection of records, holding at most one record per identifier.
//
// Adding a record for an identifier that is already present folds it into the existing record
// using [Record.Add].
// Records without an identifier are kept as-is.
// The zero value is an empty list.
type List struct {
	records []*Record
	index   map[string]int
}

// Append adds records to this list.
func (l *List) Append(records ...*Record) error {
	if l.index == nil {
		l.index = make(map[string]int, len(records))
	}

	for _, record := range records {
		id := record.ID()
		if id == "" {
			l.records = append(l.records, record)
			continue
		}

		i, ok := l.index[id]
		if !ok {
			l.index[id] = len(l.records)
			l.records = append(l.records, record)
			continue
		}

		merged, err := l.records[i].Add(record)
		if err != nil {
			return err
		}
		l.records[i] = merged
	}
	return nil
}

// Len returns the number of records in this list.
func (l *List) Len() int {
	return len(l.records)
}

// Get returns the record with the given identifier.
func (l *List) Get(id string) (*Record, bool) {
	i, ok := l.index[id]
	if !ok {
		return nil, false
	}
	return l.records[i], true
}

// Records returns the records in this list, in order of first insertion.
func (l *List) Records() []*Record {
	return append([]*Record(nil), l.records...)
}
