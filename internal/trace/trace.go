// Package trace records the logical decisions a build makes — which
// targets rebuilt, which were already fresh, which took the symlink
// fast path, which failed — independent of wall-clock timing or
// goroutine scheduling, so two builds of the same graph against the
// same filesystem state produce byte-identical traces.
package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// BuildTrace is the canonical record of one Engine.Build/BuildMany call.
type BuildTrace struct {
	RootTarget string
	Events     []TraceEvent
}

// TraceEventKind is a stable discriminator; the string values are part of
// the trace's canonical bytes and must not be renamed.
type TraceEventKind string

const (
	EventTargetFresh     TraceEventKind = "TargetFresh"
	EventTargetSymlinked TraceEventKind = "TargetSymlinked"
	EventTargetRebuilt   TraceEventKind = "TargetRebuilt"
	EventTargetFailed    TraceEventKind = "TargetFailed"
)

// TraceEvent is one logical decision about one target. Reason mirrors
// stale.Result.Reason for rebuilds ("output missing", "input newer than
// output", ...) and carries the error's message (or "missing-output") for
// failures.
type TraceEvent struct {
	Kind    TraceEventKind
	Target  string
	Reason  string
	Outputs []string
}

func (t *BuildTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.RootTarget == "" {
		return errors.New("rootTarget is required")
	}
	for i, e := range t.Events {
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if e.Target == "" {
			return fmt.Errorf("events[%d].target is required", i)
		}
	}
	return nil
}

// Canonicalize sorts events by (target, kind, reason) and normalizes empty
// Outputs slices to nil, so ordering never depends on the concurrency of
// the executor that produced them.
func (t *BuildTrace) Canonicalize() {
	if t == nil {
		return
	}
	for i := range t.Events {
		if len(t.Events[i].Outputs) == 0 {
			t.Events[i].Outputs = nil
			continue
		}
		out := make([]string, len(t.Events[i].Outputs))
		copy(out, t.Events[i].Outputs)
		sort.Strings(out)
		t.Events[i].Outputs = out
	}

	sort.SliceStable(t.Events, func(i, j int) bool {
		a, b := t.Events[i], t.Events[j]
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		return a.Reason < b.Reason
	})
}

func kindOrder(k TraceEventKind) int {
	switch k {
	case EventTargetFresh:
		return 10
	case EventTargetSymlinked:
		return 20
	case EventTargetRebuilt:
		return 30
	case EventTargetFailed:
		return 40
	default:
		return 1000
	}
}

// CanonicalJSON canonicalizes a copy of the trace and marshals it, leaving
// the receiver untouched.
func (t BuildTrace) CanonicalJSON() ([]byte, error) {
	cp := BuildTrace{RootTarget: t.RootTarget, Events: append([]TraceEvent{}, t.Events...)}
	cp.Canonicalize()
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&cp)
}

// Hash returns the sha256 hex digest of the trace's canonical JSON, usable
// as a cache key or a quick equality check between two build runs.
func (t BuildTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

func (t BuildTrace) MarshalJSON() ([]byte, error) {
	if t.RootTarget == "" {
		return nil, errors.New("rootTarget is required")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	buf.WriteString(`"rootTarget":`)
	rt, _ := json.Marshal(t.RootTarget)
	buf.Write(rt)
	buf.WriteString(`,"events":[`)
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

func (e TraceEvent) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	buf.WriteString(`"kind":`)
	kb, _ := json.Marshal(string(e.Kind))
	buf.Write(kb)
	buf.WriteString(`,"target":`)
	tb, _ := json.Marshal(e.Target)
	buf.Write(tb)
	if e.Reason != "" {
		buf.WriteString(`,"reason":`)
		rb, _ := json.Marshal(e.Reason)
		buf.Write(rb)
	}
	if len(e.Outputs) > 0 {
		buf.WriteString(`,"outputs":[`)
		for i, o := range e.Outputs {
			if i > 0 {
				buf.WriteByte(',')
			}
			ob, _ := json.Marshal(o)
			buf.Write(ob)
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
