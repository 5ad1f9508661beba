package main

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"dicomsort/internal/config"
	"dicomsort/internal/destination"
	"dicomsort/internal/dicomfile"
	"dicomsort/internal/metadata"
	"dicomsort/internal/template"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			var err error
			if target == "" {
				target, err = config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
			} else if target, err = config.ExpandPath(target); err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set sort.target (or pass --target) before running dicomsort sort.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.configPath != "" {
				fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			}
			if _, statErr := os.Stat(ctx.configPath); statErr != nil {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintf(out, "Target:      %s\n", valueOr(cfg.Sort.Target, "(not set)"))
			fmt.Fprintf(out, "Sort order:  %s\n", valueOr(strings.Join(cfg.Sort.SortOrder, " / "), "(mirror source layout)"))
			fmt.Fprintf(out, "Filename:    %s\n", valueOr(cfg.Sort.FilenameTemplate, "(keep source name)"))
			fmt.Fprintf(out, "Workers:     %d\n", cfg.Sort.Workers)
			fmt.Fprintf(out, "Originals:   %s\n", originalsMode(cfg.Sort.KeepOriginal))
			fmt.Fprintf(out, "Ledger:      %s\n", yesNo(cfg.Ledger.Enabled))
			for _, field := range unknownFields(cfg) {
				fmt.Fprintf(out, "Warning: field %q is neither a DICOM keyword nor a derived field\n", field)
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func originalsMode(keep bool) string {
	if keep {
		return "copied (sources kept)"
	}
	return "moved"
}

// unknownFields lists template and anonymization field names that no DICOM
// file can provide.
func unknownFields(cfg *config.Config) []string {
	var names []string
	names = append(names, template.Fields(cfg.Sort.FilenameTemplate)...)
	for _, entry := range cfg.Sort.SortOrder {
		names = append(names, template.Fields(destination.SegmentTemplate(entry))...)
	}
	for field, value := range cfg.Anonymization {
		names = append(names, field)
		if text, ok := value.(string); ok {
			names = append(names, template.Fields(text)...)
		}
	}

	derived := metadata.DerivedFields()
	var unknown []string
	for _, name := range names {
		if slices.Contains(derived, name) || dicomfile.KnownField(name) || slices.Contains(unknown, name) {
			continue
		}
		unknown = append(unknown, name)
	}
	sort.Strings(unknown)
	return unknown
}
