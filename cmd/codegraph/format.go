package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatNodesText formats CLINode results as aligned columns.
func formatNodesText(w io.Writer, nodes []CLINode) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tEXPORTED\tFILE\tLINES")
	for _, n := range nodes {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%d-%d\n",
			n.Name, n.Kind, n.Exported, n.File, n.StartLine, n.EndLine)
	}
	tw.Flush()
}

// formatRelationshipsText formats CLIRelationship results as aligned columns.
func formatRelationshipsText(w io.Writer, rels []CLIRelationship) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tRELATION\tTARGET")
	for _, r := range rels {
		fmt.Fprintf(tw, "%s (%s)\t%s\t%s (%s)\n",
			r.Source.Name, r.Source.File, r.Relation, r.Target.Name, r.Target.File)
	}
	tw.Flush()
}

// formatSummaryText formats CLISummary as readable text.
func formatSummaryText(w io.Writer, s CLISummary) {
	fmt.Fprintln(w, "Index Summary")
	fmt.Fprintln(w, "=============")
	fmt.Fprintf(w, "Files scanned: %d\n", s.FilesScanned)
	fmt.Fprintf(w, "Files indexed: %d\n", s.FilesIndexed)
	fmt.Fprintf(w, "Files skipped: %d\n", s.FilesSkipped)
	fmt.Fprintf(w, "Nodes: %d\n", s.NodesCreated)
	fmt.Fprintf(w, "Edges: %d\n", s.EdgesCreated)
	fmt.Fprintf(w, "Duration: %dms\n", s.DurationMS)
}

func formatStatsText(w io.Writer, s CLIStats) {
	fmt.Fprintf(w, "Files: %d\nNodes: %d\nEdges: %d\n", s.Files, s.Nodes, s.Edges)
}

// writeResultText dispatches to the appropriate text formatter based on the
// result type.
func writeResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLINode:
		formatNodesText(w, v)
	case []CLIRelationship:
		formatRelationshipsText(w, v)
	case CLISummary:
		formatSummaryText(w, v)
	case CLIStats:
		formatStatsText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// outputResult writes result to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return writeResultText(stdout, result)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
