package gossipsim

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/iti/evt/vrtime"
	"gopkg.in/yaml.v3"
)

// TraceOp names the point in a message's life a trace record marks
type TraceOp string

const (
	TraceEnqueue  TraceOp = "enqueue"
	TraceDeliver  TraceOp = "deliver"
	TraceDrop     TraceOp = "drop"
	TraceSuppress TraceOp = "suppress"
)

// NameType is a an entry in a dictionary created for a trace
// that maps agent id numbers to a (name,type) pair
type NameType struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// MsgTrace saves information about one message at one point of its passage
// through the network, for post-run analysis
type MsgTrace struct {
	Tick      int64   `json:"tick" yaml:"tick"`           // simulated tick of the event
	Time      float64 `json:"time" yaml:"time"`           // seconds the record was made at; the tick for the paced engine
	Op        TraceOp `json:"op" yaml:"op"`               // what happened
	Sender    int     `json:"sender" yaml:"sender"`       // sending agent
	Recipient int     `json:"recipient" yaml:"recipient"` // receiving agent, -1 when none was chosen
	SentAt    int64   `json:"sentat" yaml:"sentat"`       // tick the message was put in flight
	Size      int     `json:"size" yaml:"size"`           // payload length in bytes
}

// TraceManager gathers information about a simulation run.  It is
// created with a flag saying whether it is in use; every method is a no-op
// when it is not, so calls to it can stay embedded everywhere.
type TraceManager struct {
	// experiment uses trace
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of experiment
	ExpName string `json:"expname" yaml:"expname"`

	// text name associated with each agent id
	NameByID map[int]NameType `json:"namebyid" yaml:"namebyid"`

	// all trace records for this experiment, indexed by recipient
	// (by sender for records with no recipient)
	Traces map[int][]MsgTrace `json:"traces" yaml:"traces"`
}

// CreateTraceManager is a constructor.  It saves the name of the experiment
// and a flag indicating whether the trace manager is active.
func CreateTraceManager(expName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = expName
	tm.NameByID = make(map[int]NameType)
	tm.Traces = make(map[int][]MsgTrace)
	return tm
}

// Active tells the caller whether the Trace Manager is actively being used
func (tm *TraceManager) Active() bool {
	return tm != nil && tm.InUse
}

// AddTrace stores a trace record
func (tm *TraceManager) AddTrace(trace MsgTrace) {
	// return if we aren't using the trace manager
	if !tm.Active() {
		return
	}

	key := trace.Recipient
	if key < 0 {
		key = trace.Sender
	}
	tm.Traces[key] = append(tm.Traces[key], trace)
}

// AddName is used to add an element to the id -> (name,type) dictionary for the trace file
func (tm *TraceManager) AddName(id int, name string, objDesc string) error {
	if !tm.Active() {
		return nil
	}
	_, present := tm.NameByID[id]
	if present {
		return fmt.Errorf("duplicated id %d in trace names", id)
	}
	tm.NameByID[id] = NameType{Name: name, Type: objDesc}
	return nil
}

// Count returns the number of records with the given op
func (tm *TraceManager) Count(op TraceOp) int {
	if !tm.Active() {
		return 0
	}
	cnt := 0
	for _, traces := range tm.Traces {
		for _, trc := range traces {
			if trc.Op == op {
				cnt += 1
			}
		}
	}
	return cnt
}

// WriteToFile stores the Traces struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (tm *TraceManager) WriteToFile(filename string) error {
	if !tm.Active() {
		return nil
	}
	bytes, err := marshalByExt(filename, *tm)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, bytes, 0644)
}

// addMsgTrace builds the record for a delivery and stores it
func addMsgTrace(tm *TraceManager, tick int64, vrt vrtime.Time, op TraceOp, d delivery) {
	if !tm.Active() {
		return
	}
	recipient := -1
	if d.recipient != nil {
		recipient = int(d.recipient.ID())
	}
	tm.AddTrace(MsgTrace{Tick: tick, Time: vrt.Seconds(), Op: op, Sender: int(d.sender),
		Recipient: recipient, SentAt: d.sentAt, Size: len(d.payload)})
}

// marshalByExt serializes v to yaml or json, chosen by the extension of filename
func marshalByExt(filename string, v any) ([]byte, error) {
	switch path.Ext(filename) {
	case ".yaml", ".YAML", ".yml":
		return yaml.Marshal(v)
	case ".json", ".JSON":
		return json.MarshalIndent(v, "", "\t")
	}
	return nil, fmt.Errorf("cannot tell serialization format of %s", filename)
}

// isYAML reports whether filename carries a yaml extension
func isYAML(filename string) bool {
	pathExt := path.Ext(filename)
	return pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml"
}

