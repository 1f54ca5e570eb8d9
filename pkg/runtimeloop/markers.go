package runtimeloop

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// commitMarker is a parsed COMMIT: line.
type commitMarker struct {
	Title           string
	IntendedOutcome string
	Criteria        []string
}

// closeMarker is a parsed CLOSE: line.
type closeMarker struct {
	CID          string
	ActualOutcome string
	CriteriaMet  map[string]bool
}

// claimMarker is a parsed CLAIM:<type>=<json> line.
type claimMarker struct {
	Type string
	Raw  string
}

// refMarker is a parsed REF: path#id line.
type refMarker struct {
	Path string
	ID   int64
}

// assistantHeader is the optional JSON header on the first reply line.
type assistantHeader struct {
	Intent    string   `json:"intent"`
	Outcome   string   `json:"outcome"`
	Next      string   `json:"next"`
	SelfModel string   `json:"self_model"`
	Concepts  []string `json:"concepts,omitempty"`
}

var (
	commitLinePattern = regexp.MustCompile(`(?m)^COMMIT:\s*(.+)$`)
	closeLinePattern  = regexp.MustCompile(`(?m)^CLOSE:\s*(.+)$`)
	claimLinePattern  = regexp.MustCompile(`(?m)^CLAIM:([A-Za-z0-9_.]+)=(.+)$`)
	refLinePattern    = regexp.MustCompile(`(?m)^REF:\s*(\S+)#(\d+)\s*$`)
	reflectPattern    = regexp.MustCompile(`(?m)^REFLECT:(.+)$`)
)

func parseCommitLines(text string) []commitMarker {
	var out []commitMarker
	for _, m := range commitLinePattern.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(m[1])
		if body == "" {
			continue
		}
		var payload struct {
			Title           string   `json:"title"`
			IntendedOutcome string   `json:"intended_outcome"`
			Criteria        []string `json:"criteria"`
		}
		if strings.HasPrefix(body, "{") && json.Unmarshal([]byte(body), &payload) == nil && payload.Title != "" {
			out = append(out, commitMarker{Title: payload.Title, IntendedOutcome: payload.IntendedOutcome, Criteria: payload.Criteria})
			continue
		}
		out = append(out, commitMarker{Title: body})
	}
	return out
}

func parseCloseLines(text string) []closeMarker {
	var out []closeMarker
	for _, m := range closeLinePattern.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(m[1])
		if body == "" {
			continue
		}
		var payload struct {
			CID          string          `json:"cid"`
			ActualOutcome string         `json:"actual_outcome"`
			CriteriaMet  map[string]bool `json:"criteria_met"`
		}
		if strings.HasPrefix(body, "{") && json.Unmarshal([]byte(body), &payload) == nil && payload.CID != "" {
			out = append(out, closeMarker{CID: payload.CID, ActualOutcome: payload.ActualOutcome, CriteriaMet: payload.CriteriaMet})
			continue
		}
		out = append(out, closeMarker{CID: body})
	}
	return out
}

// outcomeScore computes met/len when criteria_met is present, or -1 when
// there is nothing to score.
func (c closeMarker) outcomeScore() float64 {
	if len(c.CriteriaMet) == 0 {
		return -1
	}
	met := 0
	for _, v := range c.CriteriaMet {
		if v {
			met++
		}
	}
	return float64(met) / float64(len(c.CriteriaMet))
}

func parseClaimLines(text string) []claimMarker {
	var out []claimMarker
	for _, m := range claimLinePattern.FindAllStringSubmatch(text, -1) {
		out = append(out, claimMarker{Type: m[1], Raw: strings.TrimSpace(m[2])})
	}
	return out
}

func parseRefLines(text string) []refMarker {
	var out []refMarker
	for _, m := range refLinePattern.FindAllStringSubmatch(text, -1) {
		id, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, refMarker{Path: m[1], ID: id})
	}
	return out
}

// parseReflectLine returns the first REFLECT:<json> line, if any.
func parseReflectLine(text string) (string, bool) {
	m := reflectPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// parseAssistantHeader parses the first line of a reply as the optional
// JSON status header. Only string-valued intent/outcome/next/self_model
// count; anything else is treated as "no header".
func parseAssistantHeader(reply string) (assistantHeader, bool) {
	firstLine := reply
	if idx := strings.IndexByte(reply, '\n'); idx >= 0 {
		firstLine = reply[:idx]
	}
	firstLine = strings.TrimSpace(firstLine)
	if !strings.HasPrefix(firstLine, "{") {
		return assistantHeader{}, false
	}
	var h assistantHeader
	if err := json.Unmarshal([]byte(firstLine), &h); err != nil {
		return assistantHeader{}, false
	}
	if h.Intent == "" || h.Outcome == "" || h.Next == "" || h.SelfModel == "" {
		return assistantHeader{}, false
	}
	return h, true
}

// toolCall is a parsed WEB/LEDGER_GET/LEDGER_FIND invocation, normalized
// across the marker's several accepted surface forms.
type toolCall struct {
	Tool string
	Args map[string]interface{}
}

var (
	webLinePattern        = regexp.MustCompile(`(?m)^WEB:\s*(.+)$`)
	ledgerGetLinePattern  = regexp.MustCompile(`(?m)^LEDGER_GET:\s*(.+)$`)
	ledgerFindLinePattern = regexp.MustCompile(`(?m)^LEDGER_FIND:\s*(.+)$`)
	xmlInvokePattern      = regexp.MustCompile(`(?s)<invoke name="(LEDGER_GET|LEDGER_FIND)">(.*?)</invoke>`)
	xmlParamPattern       = regexp.MustCompile(`<parameter name="([^"]+)">([^<]*)</parameter>`)
	bracketToolCallPattern = regexp.MustCompile(`(?s)\[TOOL_CALL\]\s*\{\s*tool\s*=>\s*"(LEDGER_GET|LEDGER_FIND)"\s*,\s*args\s*=>\s*(\{.*?\})\s*\}`)
)

// findWebCall returns the first WEB: invocation in the reply, in priority
// order over the other marker kinds.
func findWebCall(reply string) (toolCall, bool) {
	m := webLinePattern.FindStringSubmatch(reply)
	if m == nil {
		return toolCall{}, false
	}
	body := strings.TrimSpace(m[1])
	args := map[string]interface{}{}
	if strings.HasPrefix(body, "{") {
		_ = json.Unmarshal([]byte(body), &args)
	} else {
		args["query"] = body
	}
	return toolCall{Tool: "web_search", Args: args}, true
}

// findLedgerCall looks for a LEDGER_GET or LEDGER_FIND invocation across all
// accepted surface forms: the plain marker line, an XML <invoke> block, a
// bracketed [TOOL_CALL] form, and the canonical {"tool":...,"arguments":…}
// JSON object. Returns the parsed call, whose Tool field names the tool, and
// whether one was found.
func findLedgerCall(reply string) (toolCall, bool) {
	if m := ledgerGetLinePattern.FindStringSubmatch(reply); m != nil {
		return parseLedgerBody("ledger_get", strings.TrimSpace(m[1]))
	}
	if m := ledgerFindLinePattern.FindStringSubmatch(reply); m != nil {
		return parseLedgerBody("ledger_find", strings.TrimSpace(m[1]))
	}
	if m := xmlInvokePattern.FindStringSubmatch(reply); m != nil {
		tool := "ledger_get"
		if m[1] == "LEDGER_FIND" {
			tool = "ledger_find"
		}
		args := map[string]interface{}{}
		for _, p := range xmlParamPattern.FindAllStringSubmatch(m[2], -1) {
			args[p[1]] = coerceScalar(p[2])
		}
		return toolCall{Tool: tool, Args: args}, true
	}
	if m := bracketToolCallPattern.FindStringSubmatch(reply); m != nil {
		tool := "ledger_get"
		if m[1] == "LEDGER_FIND" {
			tool = "ledger_find"
		}
		args := map[string]interface{}{}
		_ = json.Unmarshal([]byte(m[2]), &args)
		return toolCall{Tool: tool, Args: args}, true
	}
	if tc, ok := findCanonicalToolCall(reply); ok {
		if tc.Tool == "ledger_get" || tc.Tool == "ledger_find" {
			return tc, true
		}
	}
	return toolCall{}, false
}

var canonicalToolCallPattern = regexp.MustCompile(`(?s)\{\s*"tool"\s*:\s*"(ledger_get|ledger_find)"\s*,\s*"arguments"\s*:\s*(\{.*?\})\s*\}`)

func findCanonicalToolCall(reply string) (toolCall, bool) {
	m := canonicalToolCallPattern.FindStringSubmatch(reply)
	if m == nil {
		return toolCall{}, false
	}
	args := map[string]interface{}{}
	_ = json.Unmarshal([]byte(m[2]), &args)
	return toolCall{Tool: m[1], Args: args}, true
}

func parseLedgerBody(tool, body string) (toolCall, bool) {
	if body == "" {
		return toolCall{}, false
	}
	args := map[string]interface{}{}
	if strings.HasPrefix(body, "{") {
		if err := json.Unmarshal([]byte(body), &args); err != nil {
			return toolCall{}, false
		}
	} else if tool == "ledger_get" {
		id, err := strconv.ParseInt(body, 10, 64)
		if err != nil {
			return toolCall{}, false
		}
		args["id"] = id
	} else {
		args["query"] = body
	}
	return toolCall{Tool: tool, Args: args}, true
}

func coerceScalar(s string) interface{} {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// ledgerGetID extracts the "id" argument, tolerating the common wrong
// parameter name "event_id" — which is accepted but triggers a protocol
// error trailer on the next prompt.
func ledgerGetID(args map[string]interface{}) (int64, bool, bool) {
	if v, ok := args["id"]; ok {
		id, ok := toInt64(v)
		return id, ok, false
	}
	if v, ok := args["event_id"]; ok {
		id, ok := toInt64(v)
		return id, ok, true
	}
	return 0, false, false
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case string:
		id, err := strconv.ParseInt(n, 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}
