package audio

// Mode selects the signal path from source to the tap and monitor.
type Mode int

const (
	Bypass Mode = iota
	Effected
)

func (m Mode) String() string {
	if m == Effected {
		return "effected"
	}
	return "bypass"
}

type Node string

const (
	NodeSource   Node = "source"
	NodeHighpass Node = "highpass"
	NodePeaking  Node = "peaking"
	NodeTap      Node = "tap"
	NodeMonitor  Node = "monitor"
)

// evalOrder is a topological order valid for every graph BuildGraph returns.
var evalOrder = []Node{NodeSource, NodeHighpass, NodePeaking, NodeTap, NodeMonitor}

type Edge struct {
	From Node
	To   Node
}

// BuildGraph returns the complete edge list for a mode. Routers replace
// their edges wholesale, so toggling never accumulates connections.
func BuildGraph(m Mode) []Edge {
	if m == Effected {
		return []Edge{
			{NodeSource, NodeHighpass},
			{NodeHighpass, NodePeaking},
			{NodePeaking, NodeTap},
			{NodePeaking, NodeMonitor},
		}
	}
	return []Edge{
		{NodeSource, NodeTap},
		{NodeSource, NodeMonitor},
	}
}

// CountPaths counts the distinct directed paths between two nodes.
func CountPaths(edges []Edge, from, to Node) int {
	if from == to {
		return 1
	}
	n := 0
	for _, e := range edges {
		if e.From == from {
			n += CountPaths(edges, e.To, to)
		}
	}
	return n
}
