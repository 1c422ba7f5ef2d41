package main

import (
	"github.com/jward/codegraph"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLINode is a JSON-friendly node representation.
type CLINode struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	File       string `json:"file"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	Exported   bool   `json:"exported"`
	Signature  string `json:"signature,omitempty"`
	DocComment string `json:"doc_comment,omitempty"`
}

// CLIEndpoint is one side of a CLIRelationship.
type CLIEndpoint struct {
	File string `json:"file"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// CLIRelationship is a JSON-friendly edge with both endpoints.
type CLIRelationship struct {
	Source   CLIEndpoint `json:"source"`
	Relation string      `json:"relation"`
	Target   CLIEndpoint `json:"target"`
}

// CLISummary is a JSON-friendly index run summary.
type CLISummary struct {
	FilesScanned int   `json:"files_scanned"`
	FilesIndexed int   `json:"files_indexed"`
	FilesSkipped int   `json:"files_skipped"`
	NodesCreated int   `json:"nodes_created"`
	EdgesCreated int   `json:"edges_created"`
	DurationMS   int64 `json:"duration_ms"`
}

// CLIStats is a JSON-friendly index size.
type CLIStats codegraph.Counts

func toCLINode(n *codegraph.Node) CLINode {
	c := CLINode{
		ID:        n.ID,
		Name:      n.Name,
		Kind:      string(n.Kind),
		File:      n.FilePath,
		StartLine: n.StartLine,
		EndLine:   n.EndLine,
		Exported:  n.Exported,
		Signature: n.Signature,
	}
	if n.DocComment != nil {
		c.DocComment = *n.DocComment
	}
	return c
}

func toCLINodes(nodes []*codegraph.Node) []CLINode {
	out := make([]CLINode, len(nodes))
	for i, n := range nodes {
		out[i] = toCLINode(n)
	}
	return out
}

func toCLIEndpoint(e codegraph.Endpoint) CLIEndpoint {
	return CLIEndpoint{File: e.File, Name: e.Name, Kind: string(e.Kind)}
}

func toCLIRelationships(rels []codegraph.Relationship) []CLIRelationship {
	out := make([]CLIRelationship, len(rels))
	for i, r := range rels {
		out[i] = CLIRelationship{
			Source:   toCLIEndpoint(r.Source),
			Relation: string(r.Relation),
			Target:   toCLIEndpoint(r.Target),
		}
	}
	return out
}

func toCLISummary(s *codegraph.Summary) CLISummary {
	return CLISummary{
		FilesScanned: s.FilesScanned,
		FilesIndexed: s.FilesIndexed,
		FilesSkipped: s.FilesSkipped,
		NodesCreated: s.NodesCreated,
		EdgesCreated: s.EdgesCreated,
		DurationMS:   s.Duration.Milliseconds(),
	}
}
