package plan

import "kake/internal/rules"

// Targets returns every distinct generated-target node in the plan (source
// and opaque leaves excluded), in resolution order.
func (p *Plan) Targets() []*rules.Node {
	out := make([]*rules.Node, 0, len(p.Order))
	for _, n := range p.Order {
		if !n.IsSource {
			out = append(out, n)
		}
	}
	return out
}

// Lookup finds the node for target within the plan, if present.
func (p *Plan) Lookup(target string) (*rules.Node, bool) {
	for _, n := range p.Order {
		if n.Target == target {
			return n, true
		}
	}
	return nil, false
}
