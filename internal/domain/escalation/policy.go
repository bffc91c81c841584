// Package escalation models what happens to a tenant's resources while
// an invoice stays unpaid: a day-indexed policy table and the cloud
// actions it triggers.
package escalation

import (
	"fmt"
	"sort"
)

// Action is an escalation step applied to a delinquent tenant
type Action string

const (
	// ActionSendMessage notifies the tenant, leaving resources alone
	ActionSendMessage Action = "send_message"
	// ActionStopInstances shuts down the tenant's instances
	ActionStopInstances Action = "stop_instances"
	// ActionSuspendInstances suspends the tenant's instances
	ActionSuspendInstances Action = "suspend_instances"
	// ActionPauseInstances pauses the tenant's instances
	ActionPauseInstances Action = "pause_instances"
	// ActionDeleteEverything tears down all tenant resources
	ActionDeleteEverything Action = "delete_everything"
)

// AffectsResources reports whether the action touches cloud resources.
// Event-triggered selection only considers such entries; a mere
// reminder does not need re-applying when new resources appear.
func (a Action) AffectsResources() bool {
	return a != ActionSendMessage
}

// Valid reports whether the action is a known escalation step
func (a Action) Valid() bool {
	switch a {
	case ActionSendMessage, ActionStopInstances, ActionSuspendInstances,
		ActionPauseInstances, ActionDeleteEverything:
		return true
	}
	return false
}

// Entry maps an unpaid age in days to an action. Send-message entries
// carry their notification text here; blank fields fall back to a
// generic reminder at dispatch.
type Entry struct {
	Day            int
	Action         Action
	MessageTitle   string
	MessageShort   string
	MessageContent string
}

// Policy is the static escalation table. Entries are ordered by day,
// ties keep configuration order.
type Policy struct {
	entries []Entry
}

// NewPolicy validates and orders the escalation table
func NewPolicy(entries []Entry) (*Policy, error) {
	for _, e := range entries {
		if e.Day < 0 {
			return nil, fmt.Errorf("escalation day must not be negative, got %d", e.Day)
		}
		if !e.Action.Valid() {
			return nil, fmt.Errorf("unknown escalation action %q", e.Action)
		}
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Day < sorted[j].Day })
	return &Policy{entries: sorted}, nil
}

// Entries returns the table ordered by day
func (p *Policy) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// IsEmpty reports whether no escalation is configured
func (p *Policy) IsEmpty() bool { return len(p.entries) == 0 }

// SelectExact returns every entry scheduled for exactly the given
// unpaid age. Periodic sweeps use this so each step fires once, on its
// day.
func (p *Policy) SelectExact(ageDays int) []Entry {
	var out []Entry
	for _, e := range p.entries {
		if e.Day == ageDays {
			out = append(out, e)
		}
	}
	return out
}

// SelectEventTriggered returns the most severe resource-affecting entry
// already due at the given unpaid age. Resource events (a new instance
// on a delinquent tenant) re-apply that entry so fresh resources do not
// escape the sanction.
func (p *Policy) SelectEventTriggered(ageDays int) (Entry, bool) {
	var (
		selected Entry
		found    bool
	)
	for _, e := range p.entries {
		if e.Day > ageDays || !e.Action.AffectsResources() {
			continue
		}
		if !found || e.Day >= selected.Day {
			selected = e
			found = true
		}
	}
	return selected, found
}
