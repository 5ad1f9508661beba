package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dicomsort/internal/config"
	"dicomsort/internal/dicomfile"
	"dicomsort/internal/sorter"
)

func newFieldsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fields [path...]",
		Short: "List the field names usable in templates",
		Long: `Fields reads the first DICOM file found under the given paths (default:
sort.sources, then the current directory) and prints every attribute keyword
it carries together with the derived fields.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			roots := cfg.Sort.Sources
			if len(args) > 0 {
				roots = roots[:0:0]
				for _, arg := range args {
					path, err := config.ExpandPath(strings.TrimSpace(arg))
					if err != nil {
						return fmt.Errorf("resolve %q: %w", arg, err)
					}
					roots = append(roots, path)
				}
			}
			if len(roots) == 0 {
				roots = []string{"."}
			}
			names, err := sorter.AvailableFields(cmd.Context(), dicomfile.New(), roots)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}
