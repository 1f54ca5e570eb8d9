package runtimeloop

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

// execBindRefPattern is the prefix that marks a deterministic exec_bind
// reference inside a commitment's free text, e.g. "exec_bind: mc_a1b2c3".
var execBindRefPattern = "exec_bind:"

// applyMarkers runs step 12: COMMIT lines open commitments, CLAIM lines
// validate and append claim events (auto-binding the claim type as a
// concept), and CLOSE lines apply closures. Each newly opened commitment
// gets its declared concepts bound via concept_bind_thread.
func (r *RuntimeLoop) applyMarkers(ctx context.Context, reply string, concepts []string) (TurnDelta, error) {
	delta := TurnDelta{}

	for _, c := range parseCommitLines(reply) {
		var cid string
		var err error
		if len(c.Criteria) > 0 || c.IntendedOutcome != "" {
			cid, err = r.Commitments.OpenCommitmentStructured(ctx, c.Title, c.IntendedOutcome, c.Criteria, "runtime_loop")
		} else {
			cid, err = r.Commitments.OpenCommitment(ctx, c.Title, "runtime_loop")
		}
		if err != nil {
			return delta, err
		}
		delta.Opened = append(delta.Opened, cid)

		if ref := extractExecBinds(c.Title); ref != "" && !r.Log.HasExecBind(cid) {
			payload, _ := json.Marshal(map[string]string{"type": "exec_bind", "cid": cid, "ref": ref})
			r.Log.Append(ctx, eventlog.KindConfig, string(payload), map[string]interface{}{"source": "runtime_loop"})
		}
		if len(concepts) > 0 {
			for _, token := range concepts {
				payload, _ := json.Marshal(map[string]string{"token": token, "cid": cid})
				r.Log.Append(ctx, eventlog.KindConceptBindThread, string(payload), map[string]interface{}{"source": "runtime_loop"})
			}
		}
	}

	for _, claim := range parseClaimLines(reply) {
		if !validClaimJSON(claim.Raw) {
			delta.FailedClaims = append(delta.FailedClaims, claim.Type)
			continue
		}
		if _, err := r.Log.Append(ctx, eventlog.KindClaim, claim.Raw, map[string]interface{}{"type": claim.Type, "source": "runtime_loop"}); err != nil {
			return delta, err
		}
		payload, _ := json.Marshal(map[string]string{"token": claim.Type})
		r.Log.Append(ctx, eventlog.KindConceptBindEvent, string(payload), map[string]interface{}{"source": "runtime_loop"})
	}

	var plainCIDs []string
	for _, c := range parseCloseLines(reply) {
		if c.ActualOutcome != "" || len(c.CriteriaMet) > 0 {
			if !r.Commitments.IsOpen(c.CID) {
				continue
			}
			if err := r.Commitments.CloseCommitmentStructured(ctx, c.CID, c.ActualOutcome, c.CriteriaMet, "runtime_loop"); err != nil {
				return delta, err
			}
			delta.Closed = append(delta.Closed, c.CID)
			continue
		}
		plainCIDs = append(plainCIDs, c.CID)
	}
	if len(plainCIDs) > 0 {
		closed, err := r.Commitments.ApplyClosures(ctx, plainCIDs, "runtime_loop")
		if err != nil {
			return delta, err
		}
		delta.Closed = append(delta.Closed, closed...)
	}

	return delta, nil
}

func validClaimJSON(raw string) bool {
	var v map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return false
	}
	return len(v) > 0
}

// extractExecBinds is a deterministic parser for an "exec_bind: <id>"
// reference embedded in commitment text; returns "" when absent.
func extractExecBinds(text string) string {
	idx := strings.Index(text, execBindRefPattern)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(text[idx+len(execBindRefPattern):])
	if sp := strings.IndexAny(rest, " \t\n"); sp >= 0 {
		rest = rest[:sp]
	}
	return rest
}

// adoptIdentityClaims implements step 13: derive identity adoption from
// validated identity_* claims opened this turn, appending identity_adoption
// events idempotently (skipped if the exact content already exists).
func (r *RuntimeLoop) adoptIdentityClaims(ctx context.Context, delta TurnDelta) {
	for _, e := range r.Log.ReadTail(50) {
		if e.Kind != eventlog.KindClaim {
			continue
		}
		claimType, _ := e.Meta["type"].(string)
		if !strings.HasPrefix(claimType, "identity_") {
			continue
		}
		if r.identityAlreadyAdopted(e.Content) {
			continue
		}
		r.Log.Append(ctx, eventlog.KindIdentityAdoption, e.Content, map[string]interface{}{
			"source":        "runtime_loop",
			"claim_type":    claimType,
			"ref_event_id":  e.ID,
		})
	}
}

func (r *RuntimeLoop) identityAlreadyAdopted(content string) bool {
	for _, e := range r.Log.ReadByKind(eventlog.KindIdentityAdoption, 0, false) {
		if e.Content == content {
			return true
		}
	}
	return false
}
