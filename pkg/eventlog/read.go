package eventlog

import "encoding/json"

// ReadAll returns every event in id order. Callers must not mutate the
// returned slice's Meta maps.
func (l *EventLog) ReadAll() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// ReadTail returns the last limit events in id order.
func (l *EventLog) ReadTail(limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	return append([]Event(nil), l.events[n-limit:]...)
}

// ReadSince returns events with id > afterID, in id order, bounded by limit.
func (l *EventLog) ReadSince(afterID int64, limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.ID <= afterID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// ReadRange returns events with start <= id <= end (end<=0 means open-ended).
func (l *EventLog) ReadRange(start, end int64, limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.ID < start {
			continue
		}
		if end > 0 && e.ID > end {
			break
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// ReadByKind returns events of the given kind, optionally reversed
// (newest first) and bounded by limit.
func (l *EventLog) ReadByKind(kind Kind, limit int, reverse bool) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := l.kindIndex[kind]
	out := make([]Event, 0, len(ids))
	byID := l.indexByID()
	if reverse {
		for i := len(ids) - 1; i >= 0; i-- {
			out = append(out, byID[ids[i]])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	} else {
		for _, id := range ids {
			out = append(out, byID[id])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// LastOfKind returns the most recent event of the given kind, if any.
func (l *EventLog) LastOfKind(kind Kind) (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := l.kindIndex[kind]
	if len(ids) == 0 {
		return Event{}, false
	}
	return l.eventByIDLocked(ids[len(ids)-1])
}

// ReadUpTo returns all events with id <= upTo.
func (l *EventLog) ReadUpTo(upTo int64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.ID > upTo {
			break
		}
		out = append(out, e)
	}
	return out
}

// Get returns a single event by id.
func (l *EventLog) Get(id int64) (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eventByIDLocked(id)
}

// Exists reports whether an event with the given id has been appended.
func (l *EventLog) Exists(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return id >= 1 && id <= int64(len(l.events))
}

// HashSequence returns the full chain of hashes in id order.
func (l *EventLog) HashSequence() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.Hash
	}
	return out
}

// Count returns the current max id (0 if empty).
func (l *EventLog) Count() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.events))
}

// execBindContent is the parsed shape of a config event recording an
// exec binding: {"type":"exec_bind","cid":...}.
type execBindContent struct {
	Type string `json:"type"`
	CID  string `json:"cid"`
}

// HasExecBind reports whether a config event binding the given cid to an
// executable action has been recorded.
func (l *EventLog) HasExecBind(cid string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range l.kindIndex[KindConfig] {
		e, _ := l.eventByIDLocked(id)
		var b execBindContent
		if err := json.Unmarshal([]byte(e.Content), &b); err != nil {
			continue
		}
		if b.Type == "exec_bind" && b.CID == cid {
			return true
		}
	}
	return false
}

// indexByID builds an id->Event lookup. Events are dense from 1, so a
// direct slice index suffices; kept as a helper for readability.
func (l *EventLog) indexByID() map[int64]Event {
	m := make(map[int64]Event, len(l.events))
	for _, e := range l.events {
		m[e.ID] = e
	}
	return m
}

func (l *EventLog) eventByIDLocked(id int64) (Event, bool) {
	if id < 1 || id > int64(len(l.events)) {
		return Event{}, false
	}
	return l.events[id-1], true
}
