// Package plan computes the change set between a freshly synthesized
// desired-state graph and the last recorded snapshot. Re-planning an
// unchanged configuration against its own snapshot yields an empty set.
package plan

import (
	"encoding/json"
	"fmt"
	"sort"

	"topograph/graph"
	"topograph/state"
)

// Action is what apply would do for one resource.
type Action string

const (
	ActionCreate Action = "create" // desired but not in the snapshot
	ActionUpdate Action = "update" // in both, attributes differ
	ActionDelete Action = "delete" // in the snapshot but no longer desired
	ActionNoop   Action = "noop"   // in both, identical
)

// Change is one entry of the change set.
type Change struct {
	Action Action          `json:"action"`
	Key    string          `json:"key"`
	Type   string          `json:"type"`
	Reason string          `json:"reason,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Plan is the ordered change set. Creates and updates follow the desired
// graph's topological order; deletes follow reverse snapshot order.
type Plan struct {
	Changes []Change `json:"changes"`
}

// Summary counts changes by action.
type Summary struct {
	Creates int `json:"creates"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
	Noops   int `json:"noops"`
}

// IsEmpty reports whether the plan contains no effective change.
func (p *Plan) IsEmpty() bool {
	for _, c := range p.Changes {
		if c.Action != ActionNoop {
			return false
		}
	}
	return true
}

// Summary tallies the plan by action.
func (p *Plan) Summary() Summary {
	var s Summary
	for _, c := range p.Changes {
		switch c.Action {
		case ActionCreate:
			s.Creates++
		case ActionUpdate:
			s.Updates++
		case ActionDelete:
			s.Deletes++
		case ActionNoop:
			s.Noops++
		}
	}
	return s
}

// Diff compares the topologically ordered desired nodes against the
// snapshot. Attribute comparison is byte equality of the serialized node.
func Diff(ordered []graph.Node, snapshot map[string]state.Record) (*Plan, error) {
	p := &Plan{}
	seen := make(map[string]bool, len(ordered))

	for _, node := range ordered {
		key := node.Key()
		seen[key] = true

		data, err := json.Marshal(node)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize %q: %w", key, err)
		}

		rec, exists := snapshot[key]
		switch {
		case !exists:
			p.Changes = append(p.Changes, Change{
				Action: ActionCreate,
				Key:    key,
				Type:   node.Type(),
				Reason: "resource declared in config but not in snapshot",
				Data:   data,
			})
		case string(rec.Data) != string(data):
			p.Changes = append(p.Changes, Change{
				Action: ActionUpdate,
				Key:    key,
				Type:   node.Type(),
				Reason: "resource attributes differ from snapshot",
				Data:   data,
			})
		default:
			p.Changes = append(p.Changes, Change{
				Action: ActionNoop,
				Key:    key,
				Type:   node.Type(),
			})
		}
	}

	// Deletes come out in reverse creation order so dependents go first.
	var gone []state.Record
	for key, rec := range snapshot {
		if !seen[key] {
			gone = append(gone, rec)
		}
	}
	sort.Slice(gone, func(i, j int) bool { return gone[i].Seq > gone[j].Seq })

	for _, rec := range gone {
		p.Changes = append(p.Changes, Change{
			Action: ActionDelete,
			Key:    rec.Key,
			Type:   rec.Type,
			Reason: "resource in snapshot but no longer declared",
		})
	}

	return p, nil
}
