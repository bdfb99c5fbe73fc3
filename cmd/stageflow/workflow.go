package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/stageflow/stageflow/pkg/audit"
	"github.com/stageflow/stageflow/pkg/cmd"
	"github.com/stageflow/stageflow/pkg/engine"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/notify"
	"github.com/stageflow/stageflow/pkg/persistence"
)

func NewWorkflowCommand() *cli.Command {
	return &cli.Command{
		Name:    "workflow",
		Aliases: []string{"w"},
		Usage:   "Apply, advance and inspect workflows on content",
		Commands: []*cli.Command{
			newWorkflowApplyCommand(),
			newWorkflowTransitionCommand(),
			newWorkflowStateCommand(),
			newWorkflowRemoveCommand(),
			newWorkflowHistoryCommand(),
		},
	}
}

// openEngine builds a full engine against the flagged store and template
// directory. Audit entries land in the store; notifications are logged rather
// than published, a one-shot command has no bus to publish to. The returned
// cleanup closes the store.
func openEngine(ctx context.Context, command *cli.Command) (*engine.Engine, persistence.Persistence, func(), error) {
	logger := quietLogger()

	reg, err := cmd.NewRegistry(logger, command.String("templates-path"))
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, nil, nil, err
	}

	cleanup := func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("Failed to close persistence", "error", err)
		}
	}

	recorder := audit.NewRecorder(logger, nil, audit.NewRepositorySink(store.AuditRepository()))

	eng, err := engine.New(logger, engine.Config{
		Registry:  reg,
		Instances: store.InstanceRepository(),
		Recorder:  recorder,
		Notifier:  notify.NewLogNotifier(logger),
	})
	if err != nil {
		cleanup()

		return nil, nil, nil, err
	}

	return eng, store, cleanup, nil
}

// parseAssignments turns repeated "role=user1,user2" flags into an assignment
// map. Role names are checked here so a typo fails before the store is even
// opened.
func parseAssignments(pairs []string) (map[models.Role][]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	assignments := make(map[models.Role][]string, len(pairs))

	for _, pair := range pairs {
		name, users, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid assignment %q, expected role=user1,user2", pair)
		}

		role := models.Role(strings.TrimSpace(name))
		if !role.Valid() {
			return nil, fmt.Errorf("unknown role %q in assignment %q", name, pair)
		}

		for _, user := range strings.Split(users, ",") {
			user = strings.TrimSpace(user)
			if user == "" {
				continue
			}

			assignments[role] = append(assignments[role], user)
		}
	}

	return assignments, nil
}

func newWorkflowApplyCommand() *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Aliases:   []string{"a"},
		Usage:     "Apply a workflow template to content",
		ArgsUsage: "<content-uid>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Sources:  cli.EnvVars("DATABASE_URL"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "templates-path",
				Usage:    "Path to the directory containing workflow template documents",
				Sources:  cli.EnvVars("TEMPLATES_PATH"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "template",
				Usage:    "ID of the workflow template to apply",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "user",
				Usage:    "User ID performing the operation",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "assign",
				Usage: "Role assignment as role=user1,user2 (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Replace an existing workflow on the content",
			},
			&cli.BoolFlag{
				Name:  "backup",
				Usage: "Snapshot the replaced workflow so it can be restored later",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			contentUID := command.Args().First()
			if contentUID == "" {
				return errors.New("content UID argument is required")
			}

			assignments, err := parseAssignments(command.StringSlice("assign"))
			if err != nil {
				return err
			}

			eng, _, cleanup, err := openEngine(ctx, command)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := eng.ApplyTemplate(ctx, engine.ApplyRequest{
				TemplateID:      command.String("template"),
				ContentUID:      contentUID,
				ActorID:         command.String("user"),
				RoleAssignments: assignments,
				Force:           command.Bool("force"),
				BackupExisting:  command.Bool("backup"),
			})
			if err != nil {
				return err
			}

			fmt.Printf("Applied template %s to content %s\n", result.Instance.TemplateID, contentUID)
			fmt.Printf("Current state: %s\n", result.Instance.CurrentState)

			if result.Replaced {
				fmt.Println("Replaced an existing workflow")
			}

			if result.BackupTaken {
				fmt.Println("Backup of the previous workflow was taken")
			}

			for _, warning := range result.Warnings {
				fmt.Printf("  - warning: %s\n", warning.String())
			}

			return nil
		},
	}
}

func newWorkflowTransitionCommand() *cli.Command {
	return &cli.Command{
		Name:      "transition",
		Aliases:   []string{"tr"},
		Usage:     "Execute a workflow transition on content",
		ArgsUsage: "<content-uid>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Sources:  cli.EnvVars("DATABASE_URL"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "templates-path",
				Usage:    "Path to the directory containing workflow template documents",
				Sources:  cli.EnvVars("TEMPLATES_PATH"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "transition",
				Usage:    "ID of the transition to execute",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "user",
				Usage:    "User ID performing the operation",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "role",
				Usage:    "Role the user is acting as",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "comments",
				Usage: "Comments recorded with the transition",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			contentUID := command.Args().First()
			if contentUID == "" {
				return errors.New("content UID argument is required")
			}

			role := models.Role(command.String("role"))
			if !role.Valid() {
				return fmt.Errorf("unknown role %q", command.String("role"))
			}

			eng, _, cleanup, err := openEngine(ctx, command)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := eng.ExecuteTransition(ctx, engine.TransitionRequest{
				ContentUID:   contentUID,
				TransitionID: command.String("transition"),
				ActorID:      command.String("user"),
				ActingRole:   role,
				Comments:     command.String("comments"),
			})
			if err != nil {
				return err
			}

			fmt.Printf("Content %s moved from %s to %s\n", contentUID, result.FromState, result.Instance.CurrentState)

			if result.FinalState {
				fmt.Println("The workflow has reached a final state")

				return nil
			}

			if len(result.AvailableTransitions) > 0 {
				fmt.Println("Available transitions:")

				for _, transition := range result.AvailableTransitions {
					fmt.Printf("  - %s -> %s\n", transition.ID, transition.ToState)
				}
			}

			return nil
		},
	}
}

func newWorkflowStateCommand() *cli.Command {
	return &cli.Command{
		Name:      "state",
		Aliases:   []string{"s"},
		Usage:     "Show the workflow state of content",
		ArgsUsage: "<content-uid>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Sources:  cli.EnvVars("DATABASE_URL"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "templates-path",
				Usage:    "Path to the directory containing workflow template documents",
				Sources:  cli.EnvVars("TEMPLATES_PATH"),
				Required: true,
			},
			&cli.StringFlag{
				Name:  "role",
				Usage: "Role to evaluate available actions and transitions for",
				Value: "viewer",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			contentUID := command.Args().First()
			if contentUID == "" {
				return errors.New("content UID argument is required")
			}

			role := models.Role(command.String("role"))
			if !role.Valid() {
				return fmt.Errorf("unknown role %q", command.String("role"))
			}

			eng, _, cleanup, err := openEngine(ctx, command)
			if err != nil {
				return err
			}
			defer cleanup()

			view, err := eng.GetState(ctx, contentUID, role)
			if err != nil {
				return err
			}

			fmt.Printf("Content: %s\n", view.ContentUID)
			fmt.Printf("Template: %s (%s) version %s\n", view.TemplateName, view.TemplateID, view.TemplateVersion)
			fmt.Printf("State: %s (%s)\n", view.StateTitle, view.CurrentState)

			if view.FinalState {
				fmt.Println("The workflow has reached a final state")
			}

			fmt.Printf("Applied: %s\n", view.AppliedAt.Format(time.RFC3339))
			fmt.Printf("Updated: %s\n", view.UpdatedAt.Format(time.RFC3339))

			fmt.Printf("\nActions available to %s:\n", role)

			if len(view.AvailableActions) == 0 {
				fmt.Println("  (none)")
			}

			for _, action := range view.AvailableActions {
				fmt.Printf("  - %s\n", action)
			}

			fmt.Printf("\nTransitions available to %s:\n", role)

			if len(view.AvailableTransitions) == 0 {
				fmt.Println("  (none)")
			}

			for _, transition := range view.AvailableTransitions {
				fmt.Printf("  - %s -> %s\n", transition.ID, transition.ToState)
			}

			if len(view.RoleAssignments) > 0 {
				fmt.Printf("\nRole assignments:\n")

				for _, assigned := range slices.Sorted(maps.Keys(view.RoleAssignments)) {
					fmt.Printf("  - %s: %s\n", assigned, strings.Join(view.RoleAssignments[assigned], ", "))
				}
			}

			return nil
		},
	}
}

func newWorkflowRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Aliases:   []string{"rm"},
		Usage:     "Remove the workflow from content",
		ArgsUsage: "<content-uid>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Sources:  cli.EnvVars("DATABASE_URL"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "templates-path",
				Usage:    "Path to the directory containing workflow template documents",
				Sources:  cli.EnvVars("TEMPLATES_PATH"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "user",
				Usage:    "User ID performing the operation",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "restore-backup",
				Usage: "Reinstate the workflow that was replaced by a forced apply",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			contentUID := command.Args().First()
			if contentUID == "" {
				return errors.New("content UID argument is required")
			}

			eng, _, cleanup, err := openEngine(ctx, command)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := eng.RemoveTemplate(ctx, engine.RemoveRequest{
				ContentUID:    contentUID,
				ActorID:       command.String("user"),
				RestoreBackup: command.Bool("restore-backup"),
			})
			if err != nil {
				return err
			}

			fmt.Printf("Removed template %s from content %s\n", result.RemovedTemplateID, contentUID)

			if result.Restored {
				fmt.Printf("Restored template %s in state %s\n", result.Instance.TemplateID, result.Instance.CurrentState)
			}

			return nil
		},
	}
}

// newWorkflowHistoryCommand reads the instance straight from the store. No
// template lookup is involved, so retired templates do not block reading the
// trail they left behind.
func newWorkflowHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show the transition history of content",
		ArgsUsage: "<content-uid>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Sources:  cli.EnvVars("DATABASE_URL"),
				Required: true,
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			contentUID := command.Args().First()
			if contentUID == "" {
				return errors.New("content UID argument is required")
			}

			logger := quietLogger()

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(context.Background()); err != nil {
					logger.Warn("Failed to close persistence", "error", err)
				}
			}()

			instance, err := store.InstanceRepository().GetByContentUID(ctx, contentUID)
			if err != nil {
				return err
			}

			fmt.Println("Workflow History:")
			fmt.Println("=================")

			fmt.Printf("\nContent: %s\n", instance.ContentUID)
			fmt.Printf("Template: %s\n", instance.TemplateID)
			fmt.Printf("Current state: %s\n", instance.CurrentState)

			for _, entry := range instance.History {
				fmt.Printf("\n  - %s: %s -> %s (%s) by %s\n",
					entry.Timestamp.Format(time.RFC3339), entry.FromState, entry.ToState, entry.TransitionID, entry.UserID)

				if entry.Comments != "" {
					fmt.Printf("    Comments: %s\n", entry.Comments)
				}
			}

			fmt.Printf("\nTotal transitions: %d\n", len(instance.History))

			return nil
		},
	}
}
