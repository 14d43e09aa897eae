package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"crimetrends/internal/platform/config/envfile"
	perr "crimetrends/internal/platform/errors"
	odomain "crimetrends/internal/services/orchestrator/domain"

	"github.com/spf13/cobra"
)

// backend is what the commands need from the ledger and the blocks
type backend interface {
	odomain.DeployPort
	odomain.QueryPort
	MakeGCPBlocks(ctx context.Context) error
	Close() error
}

type opener func(ctx context.Context) (backend, error)

func newRootCmd(open opener) *cobra.Command {
	var envPath string
	root := &cobra.Command{
		Use:           "crimetrends-ctl",
		Short:         "Manage crimetrends deployments, blocks and flow runs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			// a missing env file is logged; the process env may already be complete
			_ = envfile.Load(envPath)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envPath, "env", "", "dotenv file to load (default ../.env)")

	with := func(cmd *cobra.Command, fn func(ctx context.Context, b backend) error) error {
		b, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = b.Close() }()
		return fn(cmd.Context(), b)
	}

	root.AddCommand(
		newDeployCmd(with),
		newDeploymentsCmd(with),
		newBlocksCmd(with),
		newRunsCmd(with),
	)
	return root
}

type withBackend func(cmd *cobra.Command, fn func(ctx context.Context, b backend) error) error

func newDeployCmd(with withBackend) *cobra.Command {
	var (
		cron   string
		params string
	)
	cmd := &cobra.Command{
		Use:   "deploy <name>",
		Short: "Create or update a deployment of the parent flow",
		Long: `Create or update a deployment of the parent flow.

With --cron the deployment is named schedule-<name> and the agent runs it on
that schedule. Without it the deployment runs once now and the command waits
briefly for the run to finish.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw json.RawMessage
			if params != "" {
				raw = json.RawMessage(params)
			}
			return with(cmd, func(ctx context.Context, b backend) error {
				res, err := b.Deploy(ctx, args[0], cron, raw)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				d := res.Deployment
				fmt.Fprintf(out, "deployment %s/%s", d.Flow, d.Name)
				if d.NextRunAt != nil {
					fmt.Fprintf(out, " next run %s", d.NextRunAt.UTC().Format(time.RFC3339))
				}
				fmt.Fprintln(out)
				if res.Run != nil {
					fmt.Fprintf(out, "flow run %s %s\n", res.Run.ID, res.Run.State)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&cron, "cron", "", "cron schedule, e.g. \"0 6 * * *\"")
	cmd.Flags().StringVar(&params, "params", "", "flow parameters as JSON")
	return cmd
}

func newDeploymentsCmd(with withBackend) *cobra.Command {
	return &cobra.Command{
		Use:   "deployments",
		Short: "List deployments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return with(cmd, func(ctx context.Context, b backend) error {
				deps, err := b.ListDeployments(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tFLOW\tCRON\tQUEUE\tNEXT RUN")
				for _, d := range deps {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Name, d.Flow, orDash(d.Cron), d.WorkQueue, timeOrDash(d.NextRunAt))
				}
				return tw.Flush()
			})
		},
	}
}

func newBlocksCmd(with withBackend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "Manage configuration blocks",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "make",
		Short: "Create the GCP credentials and bucket blocks from the environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return with(cmd, func(ctx context.Context, b backend) error {
				if err := b.MakeGCPBlocks(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "blocks saved")
				return nil
			})
		},
	})
	return cmd
}

func newRunsCmd(with withBackend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect flow runs",
	}

	var (
		state string
		flow  string
		limit int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent flow runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := odomain.RunFilter{State: odomain.State(state), Flow: flow, Limit: limit}
			if f.State != "" && !f.State.Valid() {
				return perr.WithField(perr.InvalidArgf("unknown state %q", state), "state")
			}
			return with(cmd, func(ctx context.Context, b backend) error {
				runs, err := b.ListFlowRuns(ctx, f)
				if err != nil {
					return err
				}
				return printRuns(cmd.OutOrStdout(), runs)
			})
		},
	}
	list.Flags().StringVar(&state, "state", "", "filter by state, e.g. Failed")
	list.Flags().StringVar(&flow, "flow", "", "filter by flow name")
	list.Flags().IntVar(&limit, "limit", 20, "max runs to show")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a flow run and its task runs as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return with(cmd, func(ctx context.Context, b backend) error {
				run, tasks, err := b.GetFlowRun(ctx, args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"run": run, "task_runs": tasks})
			})
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}

func printRuns(w io.Writer, runs []odomain.FlowRun) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFLOW\tDEPLOYMENT\tSTATE\tSCHEDULED\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Flow, orDash(r.Deployment), r.State, r.ScheduledAt.UTC().Format(time.RFC3339), orDash(r.Error))
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func timeOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
