package eventlog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Event is the single persistent record of the ledger.
type Event struct {
	ID       int64                  `json:"id"`
	Ts       string                 `json:"ts"`
	Kind     Kind                   `json:"kind"`
	Content  string                 `json:"content"`
	Meta     map[string]interface{} `json:"meta"`
	PrevHash string                 `json:"prev_hash"`
	Hash     string                 `json:"hash"`
}

// TimestampFormat renders ISO-8601 UTC with microseconds and trailing Z,
// matching "YYYY-MM-DDTHH:MM:SS.ffffffZ".
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// canonicalPayload is the subset of fields that participate in the hash.
// Timestamp and id are excluded by design.
type canonicalPayload struct {
	Kind     Kind                   `json:"kind"`
	Content  string                 `json:"content"`
	Meta     map[string]interface{} `json:"meta"`
	PrevHash string                 `json:"prev_hash"`
}

// computeHash returns the SHA-256 hex digest of the canonical JSON
// representation of {kind, content, meta, prev_hash}: sorted keys, no
// whitespace, UTF-8.
func computeHash(kind Kind, content string, meta map[string]interface{}, prevHash string) (string, error) {
	canon, err := canonicalJSON(canonicalPayload{
		Kind:     kind,
		Content:  content,
		Meta:     meta,
		PrevHash: prevHash,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON marshals v with sorted object keys and no inter-token
// whitespace. encoding/json already sorts map keys on marshal; we only
// need to strip whitespace (there is none by default) and keep a stable
// shape for nested maps, which json.Marshal already guarantees.
func canonicalJSON(v interface{}) ([]byte, error) {
	buf, err := json.Marshal(normalizeForCanon(v))
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Compact(&out, buf); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// normalizeForCanon recursively converts the payload into builtin map/slice
// types so json.Marshal's deterministic sorted-key map encoding applies at
// every nesting level, including the free-form meta payload.
func normalizeForCanon(v interface{}) interface{} {
	switch t := v.(type) {
	case canonicalPayload:
		return map[string]interface{}{
			"kind":      t.Kind,
			"content":   t.Content,
			"meta":      normalizeForCanon(t.Meta),
			"prev_hash": t.PrevHash,
		}
	case map[string]interface{}:
		if t == nil {
			return map[string]interface{}{}
		}
		out := make(map[string]interface{}, len(t))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = normalizeForCanon(t[k])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalizeForCanon(e)
		}
		return out
	default:
		return v
	}
}
