package validator

import (
	"fmt"
	"sort"

	"github.com/vk/burstflow/internal/dag"
	"github.com/vk/burstflow/internal/registry"
	"github.com/vk/burstflow/internal/workflow"
)

// Level is the severity of an Issue.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Issue is one finding against a workflow.
type Issue struct {
	Level   Level
	NodeID  string // empty when the issue is not node-scoped
	Message string
}

// builtinLoopTypes are node types the executor understands natively; they
// need not be present in the registry.
var builtinLoopTypes = map[string]bool{
	"loop_group": true,
	"loop_start": true,
	"loop_end":   true,
	"loop_node":  true,
}

// Validate runs every structural check against wf using the given registry
// snapshot and returns issues in deterministic order: errors before
// warnings before info, and lexicographically by node id within a level.
func Validate(wf *workflow.Workflow, snap registry.Snapshot) []Issue {
	v := &validation{wf: wf, snap: snap, nodesByID: make(map[string]*workflow.Node, len(wf.Nodes))}
	for i := range wf.Nodes {
		v.nodesByID[wf.Nodes[i].ID] = &wf.Nodes[i]
	}

	v.checkTypeExistence()
	v.checkEdgeEndpoints()
	v.checkRequiredInputs()
	v.checkPortTypeCompatibility()
	v.checkCycles()
	v.checkLoopPairing()
	v.checkLoopGroupMembership()
	v.checkIsolatedNodes()
	v.checkMutedNodes()

	return sortIssues(v.issues)
}

type validation struct {
	wf        *workflow.Workflow
	snap      registry.Snapshot
	nodesByID map[string]*workflow.Node
	issues    []Issue
}

func (v *validation) add(level Level, nodeID, format string, args ...any) {
	v.issues = append(v.issues, Issue{Level: level, NodeID: nodeID, Message: fmt.Sprintf(format, args...)})
}

// checkTypeExistence implements check 1.
func (v *validation) checkTypeExistence() {
	for _, n := range v.wf.Nodes {
		if builtinLoopTypes[n.Type] {
			continue
		}
		if _, ok := v.snap.Specs[n.Type]; !ok {
			v.add(LevelError, n.ID, "unknown node type %q", n.Type)
		}
	}
}

// checkEdgeEndpoints implements check 2.
func (v *validation) checkEdgeEndpoints() {
	for _, e := range v.wf.Edges {
		src, srcOK := v.nodesByID[e.Source]
		tgt, tgtOK := v.nodesByID[e.Target]
		if !srcOK {
			v.add(LevelError, e.Source, "edge %q references unknown source node", e.ID)
			continue
		}
		if !tgtOK {
			v.add(LevelError, e.Target, "edge %q references unknown target node", e.ID)
			continue
		}
		if spec, ok := v.snap.Specs[src.Type]; ok {
			if !hasPort(spec.PortsOut, e.SourcePort) {
				v.add(LevelError, src.ID, "edge %q: source port %q is not declared by type %q", e.ID, e.SourcePort, src.Type)
			}
		}
		if spec, ok := v.snap.Specs[tgt.Type]; ok {
			if !hasPort(spec.PortsIn, e.TargetPort) {
				v.add(LevelError, tgt.ID, "edge %q: target port %q is not declared by type %q", e.ID, e.TargetPort, tgt.Type)
			}
		}
	}
}

// checkRequiredInputs implements check 3.
func (v *validation) checkRequiredInputs() {
	fedPorts := make(map[string]map[string]bool)
	for _, e := range v.wf.Edges {
		if fedPorts[e.Target] == nil {
			fedPorts[e.Target] = make(map[string]bool)
		}
		fedPorts[e.Target][e.TargetPort] = true
	}

	for _, n := range v.wf.Nodes {
		spec, ok := v.snap.Specs[n.Type]
		if !ok {
			continue // already reported by checkTypeExistence
		}
		for _, p := range spec.PortsIn {
			if !p.Required {
				continue
			}
			if fedPorts[n.ID][p.Name] {
				continue
			}
			if _, ok := n.Params[p.Name]; ok {
				continue
			}
			if p.HasDefault && p.Default != nil {
				continue
			}
			v.add(LevelError, n.ID, "required input %q is not connected, set in params, or defaulted", p.Name)
		}
	}
}

// checkPortTypeCompatibility implements check 4.
func (v *validation) checkPortTypeCompatibility() {
	for _, e := range v.wf.Edges {
		src, srcOK := v.nodesByID[e.Source]
		tgt, tgtOK := v.nodesByID[e.Target]
		if !srcOK || !tgtOK {
			continue
		}
		srcSpec, srcHas := v.snap.Specs[src.Type]
		tgtSpec, tgtHas := v.snap.Specs[tgt.Type]
		if !srcHas || !tgtHas {
			continue
		}
		srcPort := findPort(srcSpec.PortsOut, e.SourcePort)
		tgtPort := findPort(tgtSpec.PortsIn, e.TargetPort)
		if srcPort == nil || tgtPort == nil {
			continue
		}
		if srcPort.Type == "" || tgtPort.Type == "" || srcPort.Type == "*" || tgtPort.Type == "*" {
			continue
		}
		if srcPort.Type != tgtPort.Type {
			v.add(LevelWarning, tgt.ID, "edge %q: port type mismatch, %s.%s is %s but %s.%s is %s",
				e.ID, src.ID, e.SourcePort, srcPort.Type, tgt.ID, e.TargetPort, tgtPort.Type)
		}
	}
}

// checkCycles implements check 5: build the graph ignoring back-edges and
// look for a cycle.
func (v *validation) checkCycles() {
	g := dag.New()
	for _, n := range v.wf.Nodes {
		g.AddNode(n.ID)
	}
	for _, e := range v.wf.Edges {
		if e.IsBackEdge {
			continue
		}
		if _, ok := v.nodesByID[e.Source]; !ok {
			continue
		}
		if _, ok := v.nodesByID[e.Target]; !ok {
			continue
		}
		_ = g.AddEdge(e.Source, e.Target)
	}
	if err := g.DetectCycles(); err != nil {
		v.add(LevelError, "", "workflow contains a cycle: %s", err)
	}
}

// checkLoopPairing implements check 6.
func (v *validation) checkLoopPairing() {
	startByID := make(map[string]*workflow.Node)
	pairedStarts := make(map[string]string) // start id -> end id that claimed it
	var ends []*workflow.Node

	for i := range v.wf.Nodes {
		n := &v.wf.Nodes[i]
		switch n.Type {
		case "loop_start":
			startByID[n.ID] = n
		case "loop_end":
			ends = append(ends, n)
		}
	}

	for _, end := range ends {
		pairID, _ := end.Params["pair_id"].(string)
		if pairID == "" {
			v.add(LevelError, end.ID, "loop_end has no params.pair_id")
			continue
		}
		start, ok := startByID[pairID]
		if !ok {
			v.add(LevelError, end.ID, "loop_end's pair_id %q does not name a loop_start", pairID)
			continue
		}
		if claimedBy, already := pairedStarts[start.ID]; already {
			v.add(LevelError, end.ID, "loop_start %q is already paired with loop_end %q", start.ID, claimedBy)
			continue
		}
		pairedStarts[start.ID] = end.ID
	}

	for id := range startByID {
		if _, ok := pairedStarts[id]; !ok {
			v.add(LevelWarning, id, "loop_start is not paired with any loop_end")
		}
	}
}

// checkLoopGroupMembership implements check 7.
func (v *validation) checkLoopGroupMembership() {
	for _, n := range v.wf.Nodes {
		if n.ParentID == nil {
			continue
		}
		parent, ok := v.nodesByID[*n.ParentID]
		if !ok {
			v.add(LevelError, n.ID, "parent_id %q does not name an existing node", *n.ParentID)
			continue
		}
		if parent.Type != "loop_group" {
			v.add(LevelError, n.ID, "parent_id %q names a node of type %q, not loop_group", *n.ParentID, parent.Type)
		}
	}
}

// checkIsolatedNodes flags a node with no edges touching it at all. Loop
// constructs are exempt since a lone loop_start/loop_end/loop_node is a
// normal, if minimal, shape, and a single-node workflow is exempt since
// "isolated" is meaningless there.
func (v *validation) checkIsolatedNodes() {
	if len(v.wf.Nodes) <= 1 {
		return
	}
	touched := make(map[string]bool)
	for _, e := range v.wf.Edges {
		touched[e.Source] = true
		touched[e.Target] = true
	}
	for _, n := range v.wf.Nodes {
		if builtinLoopTypes[n.Type] || touched[n.ID] {
			continue
		}
		v.add(LevelWarning, n.ID, "node has no connected edges")
	}
}

// checkMutedNodes emits an informational note for every muted node, since
// muting silently changes a node's behavior to pass-through.
func (v *validation) checkMutedNodes() {
	for _, n := range v.wf.Nodes {
		if n.Muted {
			v.add(LevelInfo, n.ID, "node is muted: inputs pass through to same-named outputs")
		}
	}
}

func hasPort(ports []registry.PortSpec, name string) bool {
	return findPort(ports, name) != nil
}

func findPort(ports []registry.PortSpec, name string) *registry.PortSpec {
	for i := range ports {
		if ports[i].Name == name {
			return &ports[i]
		}
	}
	return nil
}

var levelRank = map[Level]int{LevelError: 0, LevelWarning: 1, LevelInfo: 2}

func sortIssues(issues []Issue) []Issue {
	sort.SliceStable(issues, func(i, j int) bool {
		if levelRank[issues[i].Level] != levelRank[issues[j].Level] {
			return levelRank[issues[i].Level] < levelRank[issues[j].Level]
		}
		return issues[i].NodeID < issues[j].NodeID
	})
	return issues
}
