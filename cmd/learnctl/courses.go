package main

import (
	"context"
	"fmt"

	"github.com/atinyakov/learncode/internal/content"
	"github.com/atinyakov/learncode/internal/exercise"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var coursesDir string

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "Load the content directory and print the course tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := coursesDir
		if dir == "" {
			dir = opts.ContentDir
		}
		lib, err := content.Load(context.Background(), dir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		courses := lib.Courses()
		if len(courses) == 0 {
			fmt.Fprintln(out, color.YellowString("!")+" no courses in "+dir)
			return nil
		}
		for _, c := range courses {
			fmt.Fprintf(out, "%s %s %s\n", color.GreenString("✓"), color.YellowString(c.ID), c.Title)
			for _, it := range c.Items {
				fmt.Fprintf(out, "  %s %s [%s] %s\n", color.CyanString("•"), it.ID, it.Type, it.Title)
				for _, st := range it.Steps {
					fmt.Fprintf(out, "      %s  %s (%d exercises)\n", st.ID, st.Title, exercise.Count(st.Content))
				}
			}
		}
		return nil
	},
}

func init() {
	coursesCmd.Flags().StringVar(&coursesDir, "dir", "", "Content directory (defaults to the configured one)")
	rootCmd.AddCommand(coursesCmd)
}
