package runtimeloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/adapter"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

// converse drives the adapter call and its bounded tool-marker round trips:
// at most one extra adapter call per marker kind, in WEB / LEDGER_GET /
// LEDGER_FIND priority order, each appending its tool-result event before
// the next call and injecting the result as a trailer on the re-prompt.
func (r *RuntimeLoop) converse(ctx context.Context, system, userText string) (string, adapter.GenerationMeta, int, error) {
	prompt := userText
	toolParseErrors := 0

	var reply string
	var meta adapter.GenerationMeta
	used := map[string]bool{}
	for round := 0; round < maxToolRounds; round++ {
		var err error
		reply, meta, err = r.Adapter.GenerateReply(ctx, system, prompt)
		if err != nil {
			return "", adapter.GenerationMeta{}, toolParseErrors, err
		}

		if web, ok := findWebCall(reply); ok && !used[web.Tool] {
			used[web.Tool] = true
			result := r.performWebSearch(ctx, web)
			prompt = userText + "\n[WEB_SEARCH_RESULTS]\n" + result
			continue
		}
		if lc, ok := findLedgerCall(reply); ok && !used[lc.Tool] {
			used[lc.Tool] = true
			result, isProtocolError := r.performLedgerCall(ctx, lc)
			if isProtocolError {
				toolParseErrors++
				prompt = userText + "\n[TOOL_PROTOCOL_ERROR]\n" + result
				continue
			}
			trailer := "[LEDGER_GET_RESULTS]"
			if lc.Tool == "ledger_find" {
				trailer = "[LEDGER_FIND_RESULTS]"
			}
			prompt = userText + "\n" + trailer + "\n" + result
			continue
		}
		break
	}
	return reply, meta, toolParseErrors, nil
}

func (r *RuntimeLoop) performWebSearch(ctx context.Context, call toolCall) string {
	query, _ := call.Args["query"].(string)
	limit := 5
	if l, ok := call.Args["limit"].(float64); ok {
		limit = int(l)
	}

	var ok bool
	var resultText string
	var errText string
	if r.WebSearch == nil {
		ok = false
		errText = "no web search provider configured"
	} else {
		text, err := r.WebSearch.Search(ctx, query, limit)
		if err != nil {
			ok = false
			errText = err.Error()
		} else {
			ok = true
			resultText = text
		}
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"query": query,
		"ok":    ok,
		"error": errText,
	})
	r.Log.Append(ctx, eventlog.KindWebSearch, string(payload), map[string]interface{}{"source": "runtime_loop"})

	if !ok {
		return fmt.Sprintf("{\"ok\":false,\"error\":%q}", errText)
	}
	return resultText
}

// performLedgerCall resolves LEDGER_GET/LEDGER_FIND against the local
// ledger. Returns (resultText, isProtocolError).
func (r *RuntimeLoop) performLedgerCall(ctx context.Context, call toolCall) (string, bool) {
	switch call.Tool {
	case "ledger_get":
		id, ok, wrongParam := ledgerGetID(call.Args)
		if wrongParam {
			return "expected parameter \"id\", got \"event_id\"", true
		}
		if !ok {
			return "missing or invalid \"id\" parameter", true
		}
		event, found := r.Log.Get(id)
		result := map[string]interface{}{"ok": found, "id": id}
		if found {
			result["kind"] = string(event.Kind)
			result["content"] = event.Content
		}
		payload, _ := json.Marshal(result)
		r.Log.Append(ctx, eventlog.KindLedgerRead, string(payload), map[string]interface{}{"source": "runtime_loop", "id": id})
		return string(payload), false
	case "ledger_find":
		query, _ := call.Args["query"].(string)
		kind, _ := call.Args["kind"].(string)
		limit := 10
		if l, ok := call.Args["limit"].(float64); ok {
			limit = int(l)
		}
		matches := r.findLedgerEntries(query, eventlog.Kind(kind), limit)
		result := map[string]interface{}{"ok": true, "count": len(matches), "ids": matches}
		payload, _ := json.Marshal(result)
		r.Log.Append(ctx, eventlog.KindLedgerSearch, string(payload), map[string]interface{}{"source": "runtime_loop", "query": query})
		return string(payload), false
	default:
		return "unknown tool", true
	}
}

func (r *RuntimeLoop) findLedgerEntries(query string, kind eventlog.Kind, limit int) []int64 {
	var ids []int64
	var events []eventlog.Event
	if kind != "" {
		events = r.Log.ReadByKind(kind, 0, true)
	} else {
		events = r.Log.ReadAll()
	}
	for i := len(events) - 1; i >= 0 && len(ids) < limit; i-- {
		e := events[i]
		if query == "" || strings.Contains(strings.ToLower(e.Content), strings.ToLower(query)) {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
