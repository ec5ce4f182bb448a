package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/auto-apply/internal/batch"
	"github.com/jonathan/auto-apply/internal/schemas"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a batch file against its JSON Schema",
	Long:  "Checks a batch file against the embedded batch schema, or against --schema when given, without launching a browser.",
	RunE:  runValidate,
}

var (
	validateFile   string
	validateSchema string
)

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "Path to the JSON file to validate (required)")
	validateCmd.Flags().StringVar(&validateSchema, "schema", "", "Path to a JSON Schema file (defaults to the embedded batch schema)")

	if err := validateCmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Sprintf("failed to mark file flag as required: %v", err))
	}

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	var err error
	jobs := -1
	if validateSchema != "" {
		err = schemas.ValidateJSON(validateSchema, validateFile)
	} else {
		var f *batch.File
		f, err = batch.Load(validateFile)
		if f != nil {
			jobs = len(f.Jobs)
		}
	}

	if err != nil {
		var validationErr *schemas.ValidationError
		if errors.As(err, &validationErr) {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Validation failed: %d error(s)\n", len(validationErr.Errors))
			for _, fe := range validationErr.Errors {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  - %s: %s\n", fe.Field, fe.Message)
			}
			return fmt.Errorf("%s does not match schema", validateFile)
		}
		return err
	}

	if jobs >= 0 {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Validation passed: %d jobs\n", jobs)
	} else {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Validation passed")
	}
	return nil
}
