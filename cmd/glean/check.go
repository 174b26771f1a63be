package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gleanlang/glean/internal/compile"
	"github.com/gleanlang/glean/internal/lang"
)

var checkBaseDir string

var checkCmd = &cobra.Command{
	Use:   "check <file.ai>",
	Short: "Parse and compile a program without running it",
	Long: `Check parses and compiles a glean program and reports what it would do,
without loading the source or calling a model. The exit status is non-zero
when the program does not compile.

Examples:
  glean check expense.ai
  glean check expense.ai --base-dir ./programs`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := args[0]

		prog, err := lang.ParseFile(file)
		if err != nil {
			return err
		}

		baseDir := checkBaseDir
		if baseDir == "" {
			baseDir = filepath.Dir(file)
		}
		plan, err := compile.Compile(prog, compile.WithBaseDir(baseDir))
		if err != nil {
			return err
		}

		fmt.Printf("%s compiles\n", file)
		fmt.Printf("  %-12s %s\n", "Verb:", plan.Verb)
		if plan.Verb == compile.VerbClassify {
			f := plan.Schema.Fields[0]
			fmt.Printf("  %-12s %s\n", "Field:", f.Name)
			fmt.Printf("  %-12s %s\n", "Categories:", strings.Join(f.EnumValues, " | "))
		} else {
			fmt.Printf("  %-12s %s (%d fields)\n", "Schema:", plan.Schema.Name, len(plan.Schema.Fields))
		}
		source := plan.Source
		if source == "" {
			source = "(none)"
		}
		fmt.Printf("  %-12s %s\n", "Source:", source)
		fmt.Printf("  %-12s %s\n", "Output:", plan.Output)
		fmt.Printf("  %-12s %d\n", "Flag rules:", len(prog.Flags))
		if plan.Draft != nil {
			fmt.Printf("  %-12s %s\n", "Draft:", plan.Draft.FieldName)
		}
		if plan.Settings.Model != "" {
			fmt.Printf("  %-12s %s\n", "Model:", plan.Settings.Model)
		}
		if plan.Settings.Temperature != nil {
			fmt.Printf("  %-12s %g\n", "Temperature:", *plan.Settings.Temperature)
		}
		if plan.Settings.TopP != nil {
			fmt.Printf("  %-12s %g\n", "Top-p:", *plan.Settings.TopP)
		}
		if plan.Settings.Seed != nil {
			fmt.Printf("  %-12s %d\n", "Seed:", *plan.Settings.Seed)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkBaseDir, "base-dir", "", "directory prompts and examples resolve against (default: the program's directory)")

	rootCmd.AddCommand(checkCmd)
}
