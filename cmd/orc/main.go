package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/orc-engine/orc/internal/approval"
	"github.com/orc-engine/orc/internal/budget"
	"github.com/orc-engine/orc/internal/core"
	"github.com/orc-engine/orc/internal/doctor"
	"github.com/orc-engine/orc/internal/docs"
	"github.com/orc-engine/orc/internal/eventbus"
	"github.com/orc-engine/orc/internal/logging"
	"github.com/orc-engine/orc/internal/orchestrator"
	"github.com/orc-engine/orc/internal/provider"
	"github.com/orc-engine/orc/internal/scaffold"
	"github.com/orc-engine/orc/internal/store"
	"github.com/orc-engine/orc/internal/transport"
	"github.com/orc-engine/orc/internal/ux"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// deps bundles the wired stack every command but init/docs needs.
type deps struct {
	store     store.Store
	bus       *eventbus.Bus
	budgetT   *budget.Tracker
	approvals *approval.Coordinator
	orch      *orchestrator.Orchestrator
	logger    *zap.Logger
}

func wire(projectRoot string, debug bool) (*deps, error) {
	st, err := store.NewFileStore(filepath.Join(projectRoot, ".orc", "store"))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	logger, err := logging.New(debug)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	bus := eventbus.New()
	budgetT := budget.NewTracker()
	approvals := approval.New(func(rec core.ApprovalRecord) {
		_ = st.AppendApproval(rec)
	})
	registry := provider.NewRegistry(provider.KeysFromEnv())
	orch := orchestrator.New(st, bus, budgetT, approvals, registry, logger)

	return &deps{store: st, bus: bus, budgetT: budgetT, approvals: approvals, orch: orch, logger: logger}, nil
}

func main() {
	app := &cli.Command{
		Name:        "orc",
		Usage:       "Multi-phase AI workflow orchestration engine",
		Description: "Run 'orc docs' for documentation on templates, providers, and the execution model.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
		},
		Commands: []*cli.Command{
			initCmd(),
			createCmd(),
			runCmd(),
			statusCmd(),
			cancelCmd(),
			resumeCmd(),
			approveCmd(true),
			approveCmd(false),
			artifactCmd(),
			doctorCmd(),
			serveCmd(),
			docsCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		os.Exit(1)
	}
}

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Scaffold a new .orc/ directory with an AI-generated workflow template",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			return scaffold.Init(ctx, dir)
		},
	}
}

func createCmd() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a new workflow execution",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "template", Usage: "Path to a workflow template YAML file"},
			&cli.StringFlag{Name: "task", Required: true, Usage: "Task description for this execution"},
			&cli.StringFlag{Name: "project-id", Usage: "Project id this execution belongs to"},
			&cli.StringFlag{Name: "project-path", Usage: "Project path (defaults to cwd)"},
			&cli.StringFlag{Name: "trigger", Value: string(core.TriggerManualTask), Usage: "github_issue, manual_task, or directory_scan"},
			&cli.FloatFlag{Name: "budget", Usage: "Execution-scoped USD budget limit"},
			&cli.BoolFlag{Name: "interactive", Usage: "Gate sensitive phases on human approval"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			projectRoot, err := findProjectRoot()
			if err != nil {
				return err
			}
			d, err := wire(projectRoot, cmd.Bool("debug"))
			if err != nil {
				return err
			}

			projectPath := cmd.String("project-path")
			if projectPath == "" {
				projectPath = projectRoot
			}

			templateID := ""
			if tplPath := cmd.String("template"); tplPath != "" {
				tpl, err := core.LoadTemplate(tplPath)
				if err != nil {
					return fmt.Errorf("loading template: %w", err)
				}
				if err := d.store.SaveTemplate(tpl); err != nil {
					return fmt.Errorf("registering template: %w", err)
				}
				templateID = tpl.ID
			}

			var budgetLimit *float64
			if cmd.IsSet("budget") {
				b := cmd.Float("budget")
				budgetLimit = &b
			}

			exec, err := d.orch.CreateExecution(orchestrator.CreateExecutionRequest{
				TemplateID:      templateID,
				TriggerMode:     core.TriggerMode(cmd.String("trigger")),
				ProjectID:       cmd.String("project-id"),
				ProjectPath:     projectPath,
				TaskDescription: cmd.String("task"),
				BudgetLimit:     budgetLimit,
				InteractiveMode: cmd.Bool("interactive"),
			})
			if err != nil {
				return err
			}

			fmt.Printf("Created execution %s%s%s (template: %s)\n", ux.Bold, exec.ID, ux.Reset, exec.TemplateName)
			fmt.Printf("Run 'orc run %s' to start it.\n", exec.ID)
			return nil
		},
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Enter the sequencing loop for an execution",
		ArgsUsage: "<execution-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runOrResume(ctx, cmd, false)
		},
	}
}

func resumeCmd() *cli.Command {
	return &cli.Command{
		Name:      "resume",
		Usage:     "Resume a paused execution",
		ArgsUsage: "<execution-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runOrResume(ctx, cmd, true)
		},
	}
}

func runOrResume(ctx context.Context, cmd *cli.Command, resume bool) error {
	executionID := cmd.Args().First()
	if executionID == "" {
		return fmt.Errorf("execution-id argument is required")
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return err
	}
	d, err := wire(projectRoot, cmd.Bool("debug"))
	if err != nil {
		return err
	}

	sub := d.bus.Subscribe(executionID)
	defer d.bus.Unsubscribe(sub)
	done := make(chan struct{})
	go printEvents(sub, done)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	var exec *core.WorkflowExecution
	if resume {
		exec, err = d.orch.Resume(runCtx, executionID)
	} else {
		exec, err = d.orch.Run(runCtx, executionID)
	}
	close(done)
	<-done

	if err != nil {
		return err
	}

	fmt.Printf("\nExecution %s finished: %s%s%s\n", exec.ID, ux.Bold, exec.Status, ux.Reset)
	if exec.Status == core.WorkflowPaused {
		ux.ResumeHint(exec.ID)
	}
	return nil
}

func printEvents(sub *eventbus.Subscription, done chan struct{}) {
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			printEvent(ev)
		case <-done:
			return
		}
	}
}

func printEvent(ev eventbus.Event) {
	switch ev.Type {
	case eventbus.EventPhaseStart:
		fmt.Printf("%s[%s]%s %s▶ phase %v started%s\n", ux.Dim, ev.ExecutionID, ux.Reset, ux.Cyan, ev.Data["name"], ux.Reset)
	case eventbus.EventPhaseOutput:
		fmt.Print(ev.Data["content"])
	case eventbus.EventPhaseComplete:
		fmt.Printf("%s[%s]%s %s✓ phase %v: %v%s\n", ux.Dim, ev.ExecutionID, ux.Reset, ux.Green, ev.Data["phase_id"], ev.Data["status"], ux.Reset)
	case eventbus.EventApprovalNeeded:
		fmt.Printf("\n%s⚠ approval needed:%s %v\n", ux.Yellow, ux.Reset, ev.Data["message"])
		fmt.Printf("  run 'orc approve %s' or 'orc reject %s'\n", ev.ExecutionID, ev.ExecutionID)
	case eventbus.EventApprovalResolved:
		fmt.Printf("%s[%s]%s approval resolved: %v\n", ux.Dim, ev.ExecutionID, ux.Reset, ev.Data["approved"])
	case eventbus.EventStatusUpdate:
		if status, ok := ev.Data["status"]; ok {
			fmt.Printf("%s[%s]%s status: %v\n", ux.Dim, ev.ExecutionID, ux.Reset, status)
		}
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show an execution's status, or list every execution",
		ArgsUsage: "[execution-id]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			projectRoot, err := findProjectRoot()
			if err != nil {
				return err
			}
			d, err := wire(projectRoot, cmd.Bool("debug"))
			if err != nil {
				return err
			}

			executionID := cmd.Args().First()
			if executionID == "" {
				execs, err := d.orch.ListExecutions(store.ExecutionFilter{})
				if err != nil {
					return err
				}
				for _, e := range execs {
					fmt.Printf("%-10s %-20s %s\n", e.ID, e.Status, e.TaskDescription)
				}
				return nil
			}

			exec, err := d.orch.GetExecution(executionID)
			if err != nil {
				return err
			}
			tmpl, err := d.store.GetTemplate(exec.TemplateID)
			if err != nil {
				return err
			}
			sum := d.orch.GetBudgetSummary(executionID)
			ux.RenderStatus(exec, tmpl, sum)
			return nil
		},
	}
}

func cancelCmd() *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Cancel a running or paused execution",
		ArgsUsage: "<execution-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			executionID := cmd.Args().First()
			if executionID == "" {
				return fmt.Errorf("execution-id argument is required")
			}
			projectRoot, err := findProjectRoot()
			if err != nil {
				return err
			}
			d, err := wire(projectRoot, cmd.Bool("debug"))
			if err != nil {
				return err
			}
			if !d.orch.Cancel(executionID) {
				return fmt.Errorf("execution %s is not active", executionID)
			}
			fmt.Printf("Cancelled %s\n", executionID)
			return nil
		},
	}
}

func approveCmd(approve bool) *cli.Command {
	name := "reject"
	if approve {
		name = "approve"
	}
	return &cli.Command{
		Name:      name,
		Usage:     fmt.Sprintf("%s the pending approval gate for an execution", name),
		ArgsUsage: "<execution-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			executionID := cmd.Args().First()
			if executionID == "" {
				return fmt.Errorf("execution-id argument is required")
			}
			projectRoot, err := findProjectRoot()
			if err != nil {
				return err
			}
			d, err := wire(projectRoot, cmd.Bool("debug"))
			if err != nil {
				return err
			}
			if !d.approvals.Resolve(executionID, approve, core.SourceCLI) {
				return fmt.Errorf("execution %s has no pending approval", executionID)
			}
			fmt.Printf("%sd %s\n", name, executionID)
			return nil
		},
	}
}

func artifactCmd() *cli.Command {
	return &cli.Command{
		Name:  "artifact",
		Usage: "Inspect or edit the artifacts a workflow execution produced",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List the artifacts produced by an execution",
				ArgsUsage: "<execution-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					executionID := cmd.Args().First()
					if executionID == "" {
						return fmt.Errorf("execution-id argument is required")
					}
					projectRoot, err := findProjectRoot()
					if err != nil {
						return err
					}
					d, err := wire(projectRoot, cmd.Bool("debug"))
					if err != nil {
						return err
					}
					artifacts, err := d.orch.GetArtifacts(executionID)
					if err != nil {
						return err
					}
					for _, a := range artifacts {
						edited := ""
						if a.IsEdited {
							edited = " (edited)"
						}
						fmt.Printf("%-10s %-12s %s%s\n", a.ID, a.Type, a.Name, edited)
					}
					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "Print one artifact's content",
				ArgsUsage: "<artifact-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					artifactID := cmd.Args().First()
					if artifactID == "" {
						return fmt.Errorf("artifact-id argument is required")
					}
					projectRoot, err := findProjectRoot()
					if err != nil {
						return err
					}
					d, err := wire(projectRoot, cmd.Bool("debug"))
					if err != nil {
						return err
					}
					a, err := d.store.GetArtifact(artifactID)
					if err != nil {
						return err
					}
					fmt.Println(a.Content)
					return nil
				},
			},
			{
				Name:      "edit",
				Usage:     "Replace an artifact's content, marking it edited",
				ArgsUsage: "<artifact-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "content", Usage: "New content (reads stdin if omitted)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					artifactID := cmd.Args().First()
					if artifactID == "" {
						return fmt.Errorf("artifact-id argument is required")
					}
					content := cmd.String("content")
					if content == "" {
						raw, err := io.ReadAll(os.Stdin)
						if err != nil {
							return fmt.Errorf("reading new content from stdin: %w", err)
						}
						content = string(raw)
					}
					projectRoot, err := findProjectRoot()
					if err != nil {
						return err
					}
					d, err := wire(projectRoot, cmd.Bool("debug"))
					if err != nil {
						return err
					}
					a, err := d.orch.UpdateArtifactContent(artifactID, content)
					if err != nil {
						return err
					}
					fmt.Printf("Updated %s%s%s\n", ux.Bold, a.ID, ux.Reset)
					return nil
				},
			},
		},
	}
}

func doctorCmd() *cli.Command {
	return &cli.Command{
		Name:      "doctor",
		Usage:     "AI-assisted diagnosis of a failed or paused execution",
		ArgsUsage: "<execution-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			executionID := cmd.Args().First()
			if executionID == "" {
				return fmt.Errorf("execution-id argument is required")
			}
			projectRoot, err := findProjectRoot()
			if err != nil {
				return err
			}
			d, err := wire(projectRoot, cmd.Bool("debug"))
			if err != nil {
				return err
			}
			return doctor.Run(ctx, d.store, d.budgetT, executionID)
		},
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the event stream and approvals API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "Listen address"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			projectRoot, err := findProjectRoot()
			if err != nil {
				return err
			}
			d, err := wire(projectRoot, cmd.Bool("debug"))
			if err != nil {
				return err
			}

			srv := transport.New(d.orch, d.store, d.bus, d.approvals, d.logger)
			addr := cmd.String("addr")
			fmt.Printf("Serving on %s\n", addr)

			runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(runCtx, addr)
		},
	}
}

func docsCmd() *cli.Command {
	return &cli.Command{
		Name:      "docs",
		Usage:     "Show documentation",
		ArgsUsage: "[topic]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				fmt.Print("\nAvailable topics:\n\n")
				for _, t := range docs.All() {
					fmt.Printf("  %-14s %s\n", t.Name, t.Summary)
				}
				fmt.Println("\nRun 'orc docs <topic>' to read a topic.")
				return nil
			}
			t, err := docs.Get(name)
			if err != nil {
				return err
			}
			fmt.Print(t.Content)
			return nil
		},
	}
}

// findProjectRoot walks up from cwd looking for a .orc directory.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		orcDir := filepath.Join(dir, ".orc")
		if info, err := os.Stat(orcDir); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no .orc directory found (searched from cwd to root); run 'orc init' first")
		}
		dir = parent
	}
}
