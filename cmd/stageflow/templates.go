package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/stageflow/stageflow/pkg/cmd"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/registry"
)

func NewTemplatesCommand() *cli.Command {
	return &cli.Command{
		Name:    "templates",
		Aliases: []string{"t"},
		Usage:   "Inspect and validate workflow templates",
		Commands: []*cli.Command{
			newTemplatesListCommand(),
			newTemplatesShowCommand(),
			newTemplatesValidateCommand(),
		},
	}
}

func newTemplatesListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List registered workflow templates",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "templates-path",
				Usage:    "Path to the directory containing workflow template documents",
				Sources:  cli.EnvVars("TEMPLATES_PATH"),
				Required: true,
			},
			&cli.StringFlag{
				Name:  "category",
				Usage: "Only list templates in this category",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			reg, err := cmd.NewRegistry(quietLogger(), command.String("templates-path"))
			if err != nil {
				return err
			}

			fmt.Println("Registered Templates:")
			fmt.Println("=====================")

			summaries := reg.Summaries(registry.Filter{
				Category: models.TemplateCategory(command.String("category")),
			})

			for _, summary := range summaries {
				fmt.Printf("\nTemplate: %s (%s)\n", summary.Name, summary.ID)
				fmt.Printf("Category: %s\n", summary.Category)
				fmt.Printf("Version: %s\n", summary.Version)
				fmt.Printf("States: %d\n", summary.States)
				fmt.Printf("Transitions: %d\n", summary.Transitions)

				warnings, err := reg.Warnings(summary.ID)
				if err != nil {
					return err
				}

				if len(warnings) > 0 {
					fmt.Printf("Warnings:\n")

					for _, warning := range warnings {
						fmt.Printf("  - %s\n", warning.String())
					}
				}
			}

			fmt.Printf("\nTotal templates: %d\n", len(summaries))

			return nil
		},
	}
}

func newTemplatesShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print a registered workflow template as JSON",
		ArgsUsage: "<template-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "templates-path",
				Usage:    "Path to the directory containing workflow template documents",
				Sources:  cli.EnvVars("TEMPLATES_PATH"),
				Required: true,
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			templateID := command.Args().First()
			if templateID == "" {
				return errors.New("template ID argument is required")
			}

			reg, err := cmd.NewRegistry(quietLogger(), command.String("templates-path"))
			if err != nil {
				return err
			}

			template, err := reg.Get(templateID)
			if err != nil {
				return err
			}

			document, err := json.MarshalIndent(template, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode template %s: %w", templateID, err)
			}

			fmt.Println(string(document))

			return nil
		},
	}
}

// newTemplatesValidateCommand checks every document in a directory instead of
// stopping at the first broken one the way startup loading does, so authors
// get a full report in one run.
func newTemplatesValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate workflow template documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "templates-path",
				Usage:    "Path to the directory containing workflow template documents",
				Sources:  cli.EnvVars("TEMPLATES_PATH"),
				Required: true,
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			templatesPath := command.String("templates-path")

			paths, err := filepath.Glob(filepath.Join(templatesPath, "*.json"))
			if err != nil {
				return fmt.Errorf("failed to scan %s: %w", templatesPath, err)
			}

			if len(paths) == 0 {
				return fmt.Errorf("no template documents found in %s", templatesPath)
			}

			reg := registry.NewRegistry(quietLogger())

			fmt.Println("Template Validation Results:")
			fmt.Println("============================")

			validDocuments := 0
			invalidDocuments := 0

			for _, path := range paths {
				fmt.Printf("\nDocument: %s\n", filepath.Base(path))

				document, err := os.ReadFile(path)
				if err != nil {
					fmt.Printf("    ❌ INVALID: %v\n", err)
					invalidDocuments++

					continue
				}

				template, err := reg.RegisterDocument(document)
				if err != nil {
					var templateErr *registry.TemplateError
					if errors.As(err, &templateErr) && len(templateErr.Issues) > 0 {
						fmt.Printf("    ❌ INVALID: %v\n", templateErr.Err)

						for _, issue := range templateErr.Issues {
							fmt.Printf("      - %s\n", issue.String())
						}
					} else {
						fmt.Printf("    ❌ INVALID: %v\n", err)
					}

					invalidDocuments++

					continue
				}

				fmt.Printf("    ✅ VALID: %s (%s)\n", template.Name, template.ID)
				validDocuments++

				warnings, _ := reg.Warnings(template.ID)
				for _, warning := range warnings {
					fmt.Printf("      - warning: %s\n", warning.String())
				}
			}

			fmt.Printf("\nValidation Summary:\n")
			fmt.Printf("  Total documents: %d\n", validDocuments+invalidDocuments)
			fmt.Printf("  Valid documents: %d\n", validDocuments)
			fmt.Printf("  Invalid documents: %d\n", invalidDocuments)

			if invalidDocuments > 0 {
				return fmt.Errorf("found %d invalid template documents", invalidDocuments)
			}

			fmt.Println("All template documents are valid! ✅")

			return nil
		},
	}
}
