package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tandem/internal/diff"
	"github.com/roach88/tandem/internal/ir"
)

// DeriveOptions holds flags for the derive command.
type DeriveOptions struct {
	*RootOptions
	Files bool
}

// DeriveResult is the edit script between two texts.
type DeriveResult struct {
	Changes      []string `json:"changes"`
	Instructions []string `json:"instructions"`
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeriveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "derive <old> <new>",
		Short: "Print the instructions that turn one text into another",
		Long: `Derive the hunks and the instruction sequence that rewrite <old> into
<new>. Indices count Unicode code points; each instruction's index
accounts for every instruction before it.

Examples:
  tandem derive "this is test" "this was test"
  tandem derive --files before.txt after.txt --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Files, "files", false, "treat arguments as file paths")

	return cmd
}

func runDerive(opts *DeriveOptions, oldArg, newArg string, cmd *cobra.Command) error {
	oldText, newText := oldArg, newArg
	if opts.Files {
		oldData, err := os.ReadFile(oldArg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read old text", err)
		}
		newData, err := os.ReadFile(newArg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read new text", err)
		}
		oldText, newText = string(oldData), string(newData)
	}

	result := DeriveResult{Changes: []string{}}
	for _, c := range diff.Changes(oldText, newText) {
		result.Changes = append(result.Changes, c.String())
	}
	result.Instructions = ir.Ops(diff.Derive(oldText, newText)).Strings()

	formatter := opts.formatter(cmd)
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	if len(result.Changes) == 0 {
		fmt.Fprintln(w, "No changes.")
		return nil
	}
	fmt.Fprintln(w, "Changes:")
	for _, c := range result.Changes {
		fmt.Fprintf(w, "  %s\n", c)
	}
	fmt.Fprintln(w, "Instructions:")
	for _, s := range result.Instructions {
		fmt.Fprintf(w, "  %s\n", s)
	}
	return nil
}
