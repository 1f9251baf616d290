package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tandem/internal/harness"
)

// FileValidation is the validation outcome for one scenario file.
type FileValidation struct {
	Path   string   `json:"path"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario|dir>...",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario files against the CUE schema and the structural
rules (replica labels, step indices, one action per step).

Directories are searched for .yaml and .yml files.

Examples:
  tandem validate scenarios/concurrent_inserts.yaml
  tandem validate ./scenarios --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("cannot read %s", arg), err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		files, err := harness.FindScenarioFiles(arg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		paths = append(paths, files...)
	}

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(paths))}
	for _, path := range paths {
		formatter.VerboseLog("Validating %s", path)
		fv := validateFile(path)
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	invalid := 0
	for _, fv := range result.Files {
		if !fv.Valid {
			invalid++
		}
	}

	if formatter.JSON() {
		if !result.Valid {
			if err := formatter.Failure(ErrCodeInvalid, fmt.Sprintf("%d invalid scenario(s)", invalid), result); err != nil {
				return err
			}
			return NewExitError(ExitFailure, fmt.Sprintf("%d invalid scenario(s)", invalid))
		}
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	for _, fv := range result.Files {
		if fv.Valid {
			fmt.Fprintf(w, "✓ %s\n", fv.Path)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", fv.Path)
		for _, e := range fv.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d invalid scenario(s)", invalid))
	}
	fmt.Fprintf(w, "✓ %d scenario(s) valid\n", len(result.Files))
	return nil
}

// validateFile runs the schema check and the structural checks, reporting
// both.
func validateFile(path string) FileValidation {
	fv := FileValidation{Path: path, Valid: true}
	if err := harness.ValidateScenarioFile(path); err != nil {
		fv.Valid = false
		var se *harness.SchemaError
		if errors.As(err, &se) {
			for _, issue := range se.Issues {
				fv.Errors = append(fv.Errors, "schema: "+issue)
			}
		} else {
			fv.Errors = append(fv.Errors, err.Error())
		}
	}
	if _, err := harness.LoadScenario(path); err != nil {
		fv.Valid = false
		fv.Errors = append(fv.Errors, err.Error())
	}
	return fv
}
