package cmd

import (
	"context"
	"fmt"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	awsclient "tasnim.dev/eks-lifecycle/internal/aws"
	"tasnim.dev/eks-lifecycle/internal/aws/eks"
	"tasnim.dev/eks-lifecycle/internal/logging"
	"tasnim.dev/eks-lifecycle/internal/tui"
)

func newWatchCmd(g *globalOptions) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "watch <cluster>",
		Short: "Watch a cluster until it reaches a target state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tgt, err := parseTarget(target)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			rt, err := g.setup(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			// Suppress log output, including client-go's, to prevent TUI corruption.
			rt.log = zap.NewNop().Sugar()
			logging.RouteKlog(rt.log)

			name := args[0]
			model := tui.NewModel(rt.aws.EKS, name, tgt, rt.profile, rt.region).
				WithAccount(awsclient.GetAccountID(ctx, rt.aws.Config))
			p := tea.NewProgram(model, tea.WithContext(ctx))

			orch, err := rt.orchestrator(func(obs eks.Observation) {
				p.Send(tui.AttemptMsg{Observation: obs, At: time.Now()})
			})
			if err != nil {
				return err
			}

			go func() {
				p.Send(tui.DoneMsg{Err: orch.Wait(ctx, name, tgt)})
			}()

			if _, err := p.Run(); err != nil {
				return fmt.Errorf("running watch view: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "for", string(eks.TargetActive), "target state: ACTIVE or DELETED")
	return cmd
}
