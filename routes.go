package gossipsim

// routes.go converts the peer relation into the graph representation of the
// gonum graph packages, so questions like "is the network still connected
// after a fault" or "how many gossip hops separate two agents" can be
// answered with their built-in algorithms.
//
// Graph nodes are labeled by the agent's position in the agent slice, not by
// its id, so every label is a valid non-negative gonum node id.

import (
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// buildPeerGraph returns the directed graph with an edge a->p for every p in
// the peer list of a
func (tp *topology) buildPeerGraph() *simple.DirectedGraph {
	g := simple.NewDirectedGraph()
	for idx := range tp.agents {
		g.AddNode(simple.Node(idx))
	}
	for _, a := range tp.agents {
		from := simple.Node(tp.index[a.ID()])
		for _, p := range tp.peers[a.ID()] {
			g.SetEdge(g.NewEdge(from, simple.Node(tp.index[p.ID()])))
		}
	}
	return g
}

// buildUndirectedPeerGraph ignores edge direction; an agent that lists a
// peer is connected to it
func (tp *topology) buildUndirectedPeerGraph() *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	for idx := range tp.agents {
		g.AddNode(simple.Node(idx))
	}
	for _, a := range tp.agents {
		from := simple.Node(tp.index[a.ID()])
		for _, p := range tp.peers[a.ID()] {
			g.SetEdge(g.NewEdge(from, simple.Node(tp.index[p.ID()])))
		}
	}
	return g
}

// convertNodeSeq maps graph nodes back to agent ids
func (tp *topology) convertNodeSeq(nodes []graph.Node) []AgentID {
	rtn := make([]AgentID, 0, len(nodes))
	for _, node := range nodes {
		rtn = append(rtn, tp.agents[node.ID()].ID())
	}
	return rtn
}

// Components returns the connected components of the peer relation.  Each
// component is ordered by agent position, and components are ordered by
// their first member.
func (tp *topology) Components() [][]AgentID {
	cc := topo.ConnectedComponents(tp.buildUndirectedPeerGraph())
	rtn := make([][]AgentID, 0, len(cc))
	for _, nodes := range cc {
		slices.SortFunc(nodes, func(a, b graph.Node) int { return int(a.ID() - b.ID()) })
		rtn = append(rtn, tp.convertNodeSeq(nodes))
	}
	slices.SortFunc(rtn, func(a, b []AgentID) int { return tp.index[a[0]] - tp.index[b[0]] })
	return rtn
}

// Reachable reports whether a broadcast from a can reach b by relaying over
// the peer relation
func (tp *topology) Reachable(a, b AgentID) bool {
	aIdx, present := tp.index[a]
	if !present {
		return false
	}
	bIdx, present := tp.index[b]
	if !present {
		return false
	}
	return topo.PathExistsIn(tp.buildPeerGraph(), simple.Node(aIdx), simple.Node(bIdx))
}

// HopCount returns the smallest number of peer hops from a to b, and false if
// b cannot be reached from a
func (tp *topology) HopCount(a, b AgentID) (int, bool) {
	aIdx, present := tp.index[a]
	if !present {
		return 0, false
	}
	bIdx, present := tp.index[b]
	if !present {
		return 0, false
	}
	spTree := path.DijkstraFrom(simple.Node(aIdx), tp.buildPeerGraph())
	hops := spTree.WeightTo(int64(bIdx))
	if math.IsInf(hops, 1) {
		return 0, false
	}
	return int(hops), true
}

// Route returns the agents on a shortest relay path from a to b, inclusive
func (tp *topology) Route(a, b AgentID) []AgentID {
	aIdx, present := tp.index[a]
	if !present {
		return nil
	}
	bIdx, present := tp.index[b]
	if !present {
		return nil
	}
	spTree := path.DijkstraFrom(simple.Node(aIdx), tp.buildPeerGraph())
	nodeSeq, _ := spTree.To(int64(bIdx))
	return tp.convertNodeSeq(nodeSeq)
}
