package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atinyakov/learncode/internal/exercise"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var extractJSON bool

var extractCmd = &cobra.Command{
	Use:   "extract <file|->",
	Short: "Show the exercises found in a step document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		segments := exercise.Extract(doc)

		out := cmd.OutOrStdout()
		if extractJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(segments)
		}
		printSegments(out, segments)
		return nil
	},
}

func readInput(cmd *cobra.Command, name string) (string, error) {
	var (
		b   []byte
		err error
	)
	if name == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(b), nil
}

func printSegments(w io.Writer, segments []exercise.Segment) {
	n := 0
	for _, s := range segments {
		switch s.Kind {
		case exercise.KindMarkdown:
			lines := strings.Count(strings.TrimRight(s.Text, "\n"), "\n") + 1
			fmt.Fprintf(w, "%s markdown (%d lines)\n", color.CyanString("•"), lines)
		case exercise.KindExercise:
			n++
			ex := s.Exercise
			fmt.Fprintf(w, "%s exercise %d: %s\n", color.GreenString("✓"), n, color.YellowString(ex.Title))
			if ex.Description != "" {
				fmt.Fprintf(w, "    %s\n", firstLine(ex.Description))
			}
			fmt.Fprintf(w, "    hint: %s  solution: %s\n", yesNo(ex.Hint != nil), yesNo(ex.Solution != nil))
		}
	}
	if n == 0 {
		fmt.Fprintln(w, color.YellowString("!")+" no exercises found")
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "Print segments as JSON")
	rootCmd.AddCommand(extractCmd)
}
