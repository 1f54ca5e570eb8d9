package eventlog

import "encoding/json"

// policyContent is the parsed shape of a config event with type "policy":
// {"type":"policy","forbid_sources":{<source>: [<kind>, ...]}}.
type policyContent struct {
	Type          string              `json:"type"`
	ForbidSources map[string][]string `json:"forbid_sources"`
}

// latestPolicy scans events in reverse for the latest config event whose
// content parses as a policy and returns it; config events whose content
// does not parse are skipped. If none is found, it returns nil (fail-open).
func latestPolicy(events []Event) *policyContent {
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if e.Kind != KindConfig {
			continue
		}
		var p policyContent
		if err := json.Unmarshal([]byte(e.Content), &p); err != nil {
			continue
		}
		if p.Type != "policy" {
			continue
		}
		return &p
	}
	return nil
}

// policyForbids reports whether source is listed as forbidden from writing
// kind under the given policy. A nil policy never forbids (fail-open).
func policyForbids(p *policyContent, source string, kind Kind) bool {
	if p == nil || source == "" {
		return false
	}
	forbidden, ok := p.ForbidSources[source]
	if !ok {
		return false
	}
	for _, k := range forbidden {
		if k == string(kind) {
			return true
		}
	}
	return false
}
