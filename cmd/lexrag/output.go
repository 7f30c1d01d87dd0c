package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/kalambet/lexrag/internal/answer"
	"github.com/kalambet/lexrag/internal/storage"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// writeAnswer renders an answer in the section order a reader expects.
func writeAnswer(w io.Writer, a answer.Answer) {
	section := func(title string) {
		fmt.Fprintf(w, "\n%s\n", colorize(colorBold, title))
	}

	section("Summary")
	fmt.Fprintln(w, a.Summary)

	section("Key Points")
	for _, p := range a.KeyPoints {
		fmt.Fprintf(w, "- %s\n", p)
	}

	section("Guidance")
	fmt.Fprintln(w, a.Guidance)

	section("Citations")
	if len(a.Citations) == 0 {
		fmt.Fprintln(w, "No citations available")
	}
	for _, c := range a.Citations {
		fmt.Fprintf(w, "- %s\n", c)
	}

	section("Disclaimer")
	fmt.Fprintln(w, a.Disclaimer)
}

func writeDocuments(w io.Writer, docs []storage.Document) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOC ID\tDOMAIN\tFILENAME\tCHUNKS\tCREATED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", d.DocID, d.Domain, d.Filename, d.ChunkCount, d.CreatedAt.UTC().Format("2006-01-02 15:04"))
	}
	tw.Flush()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
