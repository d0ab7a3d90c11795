package gossipsim

// desc-topo.go saves and restores the peer relation as a description file,
// so that an experiment can be rerun over exactly the same graph.

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// A TopoDesc describes a peer relation.  Edges maps an agent id to the ids
// of its peers; an agent with no peers may be absent or map to an empty list.
type TopoDesc struct {
	// Name is an identifier for this topology
	Name string `json:"name" yaml:"name"`

	// Agents lists every agent id the topology was exported from
	Agents []AgentID `json:"agents" yaml:"agents"`

	Edges map[AgentID][]AgentID `json:"edges" yaml:"edges"`
}

// CreateTopoDesc is an initialization constructor
func CreateTopoDesc(name string) *TopoDesc {
	td := new(TopoDesc)
	td.Name = name
	td.Agents = make([]AgentID, 0)
	td.Edges = make(map[AgentID][]AgentID)
	return td
}

// AddEdge records that a and b are peers of each other
func (td *TopoDesc) AddEdge(a, b AgentID) {
	if !slices.Contains(td.Edges[a], b) {
		td.Edges[a] = append(td.Edges[a], b)
	}
	if !slices.Contains(td.Edges[b], a) {
		td.Edges[b] = append(td.Edges[b], a)
	}
}

// NumEdges counts each undirected edge once
func (td *TopoDesc) NumEdges() int {
	cnt := 0
	for a, peers := range td.Edges {
		for _, b := range peers {
			if a < b || !slices.Contains(td.Edges[b], a) {
				cnt += 1
			}
		}
	}
	return cnt
}

// WriteToFile stores the TopoDesc struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (td *TopoDesc) WriteToFile(filename string) error {
	bytes, err := marshalByExt(filename, *td)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, bytes, 0644)
}

// ReadTopoDesc deserializes a byte slice holding a representation of a TopoDesc struct.
// If the input argument of dict (those bytes) is empty, the file whose name is given is read
// to acquire them.  A deserialized representation is returned, or an error if one is generated
// from a file read or the deserialization.
func ReadTopoDesc(filename string, useYAML bool, dict []byte) (*TopoDesc, error) {
	var err error

	// if the dict slice of bytes is empty we get them from the file whose name is an argument
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	example := TopoDesc{}
	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}
	if err != nil {
		return nil, err
	}
	if example.Edges == nil {
		example.Edges = make(map[AgentID][]AgentID)
	}
	return &example, nil
}

// ExportTopology describes the current peer relation
func (tp *topology) ExportTopology(name string) *TopoDesc {
	td := CreateTopoDesc(name)
	for _, a := range tp.agents {
		td.Agents = append(td.Agents, a.ID())
		td.Edges[a.ID()] = tp.PeerIDs(a.ID())
	}
	return td
}

// ApplyTopology replaces the peer relation with the one td describes.  Every
// edge is made mutual and self edges are dropped.  An id that is not in the
// agent set is an error, and leaves the peer relation untouched.
func (tp *topology) ApplyTopology(td *TopoDesc) error {
	for a, peers := range td.Edges {
		if _, present := tp.index[a]; !present {
			return fmt.Errorf("topology %s: %w: %d", td.Name, ErrUnknownAgent, a)
		}
		for _, b := range peers {
			if _, present := tp.index[b]; !present {
				return fmt.Errorf("topology %s: %w: %d", td.Name, ErrUnknownAgent, b)
			}
		}
	}

	tp.reset()
	for a, peers := range td.Edges {
		for _, b := range peers {
			tp.addEdge(tp.agents[tp.index[a]], tp.agents[tp.index[b]])
		}
	}
	tp.logger.Info().Str("topology", td.Name).Int("edges", td.NumEdges()).Msg("applied topology")
	return nil
}
