package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tasnim.dev/eks-lifecycle/internal/aws/eks"
	awslogs "tasnim.dev/eks-lifecycle/internal/aws/logs"
	awsvpc "tasnim.dev/eks-lifecycle/internal/aws/vpc"
	"tasnim.dev/eks-lifecycle/internal/lifecycle"
	"tasnim.dev/eks-lifecycle/internal/state"
	"tasnim.dev/eks-lifecycle/internal/tui/theme"
	"tasnim.dev/eks-lifecycle/internal/utils"
)

// loadParams reads a resource config file. An empty path yields zero params.
func loadParams(path string) (eks.CreateParams, error) {
	var params eks.CreateParams
	if path == "" {
		return params, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return params, err
	}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("parsing %s: %w", path, err)
	}
	return params, nil
}

func newCreateCmd(g *globalOptions) *cobra.Command {
	var (
		file           string
		instanceID     string
		role           string
		version        string
		subnets        []string
		securityGroups []string
		tags           map[string]string
		wait           bool
		checkRole      bool
	)

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a cluster and wait for it to become active",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := loadParams(file)
			if err != nil {
				return fmt.Errorf("loading resource config: %w", err)
			}
			if len(args) == 1 {
				params.Name = args[0]
			}
			if role != "" {
				params.RoleARN = role
			}
			if version != "" {
				params.Version = version
			}
			if len(subnets) > 0 {
				params.ResourcesVpcConfig.SubnetIDs = subnets
			}
			if len(securityGroups) > 0 {
				params.ResourcesVpcConfig.SecurityGroupIDs = securityGroups
			}
			if len(tags) > 0 {
				if params.Tags == nil {
					params.Tags = map[string]string{}
				}
				for k, v := range tags {
					params.Tags[k] = v
				}
			}

			ctx := cmd.Context()
			rt, err := g.setup(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			if checkRole && params.RoleARN != "" {
				check, err := rt.aws.IAM.CheckClusterRole(ctx, params.RoleARN)
				if err != nil {
					return fmt.Errorf("checking cluster role: %w", err)
				}
				if !check.OK() {
					return fmt.Errorf("role %s is not usable by EKS (trusts eks.amazonaws.com: %t, has AmazonEKSClusterPolicy: %t)",
						check.Role.ARN, check.TrustsEKS, check.HasClusterPolicy)
				}
			}

			orch, err := rt.orchestrator(nil)
			if err != nil {
				return err
			}

			inst, err := orch.Create(ctx, instanceID, params)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Creating cluster %s (instance %s)\n", inst.ClusterName, inst.ID)
			if !wait {
				return nil
			}

			res, err := orch.Poststart(ctx, inst.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Cluster %s is %s (%s, zones: %s)\n",
				res.Cluster.Name, res.Cluster.Status, res.NodeType, utils.JoinOrDash(res.Zones))
			printEnrichment(out, res.Enrichment)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "resource config file (YAML)")
	cmd.Flags().StringVar(&instanceID, "instance", "", "instance ID to record the cluster under")
	cmd.Flags().StringVar(&role, "role", "", "cluster service role name or ARN")
	cmd.Flags().StringVar(&version, "version", "", "Kubernetes version")
	cmd.Flags().StringSliceVar(&subnets, "subnet", nil, "subnet ID (repeatable)")
	cmd.Flags().StringSliceVar(&securityGroups, "security-group", nil, "security group ID (repeatable)")
	cmd.Flags().StringToStringVar(&tags, "tag", nil, "cluster tag key=value (repeatable)")
	cmd.Flags().BoolVar(&wait, "wait", true, "wait for the cluster to become active")
	cmd.Flags().BoolVar(&checkRole, "check-role", false, "verify the role trusts EKS before creating")

	return cmd
}

func newDeleteCmd(g *globalOptions) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "delete <instance|cluster>",
		Short: "Delete a cluster and wait until it is gone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := g.setup(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			inst, err := rt.resolveInstance(ctx, args[0])
			if errors.Is(err, state.ErrNotFound) {
				// Unmanaged cluster: record it so the delete is tracked.
				inst = state.Instance{ID: args[0], ClusterName: args[0], Region: rt.region, State: state.StateActive}
				err = rt.store.Put(ctx, inst)
			}
			if err != nil {
				return err
			}

			orch, err := rt.orchestrator(nil)
			if err != nil {
				return err
			}
			results, err := orch.Delete(ctx, inst.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cluster %s deleted\n", inst.ClusterName)
			printEnrichment(cmd.OutOrStdout(), results)
			if purge {
				return orch.Forget(ctx, inst.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "drop the instance record once the cluster is gone")
	return cmd
}

func newDescribeCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <cluster>",
		Short: "Show a cluster and its recorded instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := g.setup(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			cluster, err := rt.aws.EKS.DescribeCluster(ctx, args[0])
			if err != nil {
				return err
			}

			d := utils.NewDetailBuilder(16, theme.MutedStyle)
			d.Section("Cluster")
			d.Row("Name", cluster.Name)
			d.Row("ARN", cluster.ARN)
			d.Row("Status", theme.RenderStatus(cluster.Status))
			d.Row("Version", cluster.Version)
			d.Row("Platform", cluster.PlatformVersion)
			d.Row("Endpoint", cluster.Endpoint)
			d.Row("Public", fmt.Sprintf("%t", cluster.EndpointPublic))
			d.Row("Private", fmt.Sprintf("%t", cluster.EndpointPrivate))
			d.Row("VPC", cluster.VPCID)
			d.List("Subnets", cluster.SubnetIDs)
			d.List("Security groups", cluster.SecurityGroupIDs)
			d.Row("Role", utils.ShortName(cluster.RoleARN))
			if account, err := utils.AccountFromARN(cluster.ARN); err == nil {
				d.Row("Account", account)
			}
			if zones, err := rt.aws.VPC.SubnetZones(ctx, cluster.SubnetIDs); err == nil {
				d.Row("Zones", utils.JoinOrDash(awsvpc.DistinctZones(zones)))
			} else {
				rt.log.Debugw("Looking up subnet zones", "cluster", cluster.Name, "error", err)
			}
			if group, err := rt.aws.Logs.FindLogGroup(ctx, awslogs.ControlPlaneLogGroup(cluster.Name)); err == nil && group != nil {
				d.Row("Log group", fmt.Sprintf("%s (retention %dd)", group.Name, group.RetentionDays))
			}
			d.Row("Created", utils.TimeOrDash(cluster.CreatedAt, utils.DateTimeSec))
			d.Map("Tags", cluster.Tags)

			if inst, err := rt.resolveInstance(ctx, cluster.Name); err == nil {
				d.Blank()
				d.Section("Instance")
				d.Row("ID", inst.ID)
				d.Row("State", theme.RenderStatus(string(inst.State)))
				d.Row("Deployment", inst.DeploymentID)
				if inst.Site != nil {
					d.Row("Site", inst.Site.Name+" ("+inst.Site.Coordinates+")")
				}
				d.Map("Labels", inst.Labels)
				d.Row("Kubeconfig", inst.KubeconfigObject)
				d.Row("Updated", utils.TimeOrDash(inst.UpdatedAt, utils.DateTimeSec))
			} else if !errors.Is(err, state.ErrNotFound) {
				rt.log.Warnw("Looking up instance", "cluster", cluster.Name, "error", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), d.String())
			return nil
		},
	}
}

func newListCmd(g *globalOptions) *cobra.Command {
	var instances bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clusters in the region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := g.setup(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			t := table.New().
				Border(lipgloss.NormalBorder()).
				BorderStyle(theme.MutedStyle).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == table.HeaderRow {
						return lipgloss.NewStyle().Bold(true).Padding(0, 1)
					}
					return lipgloss.NewStyle().Padding(0, 1)
				})

			if instances {
				store, err := rt.registry()
				if err != nil {
					return err
				}
				list, err := store.List(ctx)
				if err != nil {
					return err
				}
				t.Headers("INSTANCE", "CLUSTER", "STATE", "REGION", "SITE", "UPDATED")
				for _, inst := range list {
					site := ""
					if inst.Site != nil {
						site = inst.Site.Name
					}
					t.Row(inst.ID, inst.ClusterName, theme.RenderStatus(string(inst.State)),
						utils.OrDash(inst.Region), utils.OrDash(site), utils.TimeOrDash(inst.UpdatedAt, utils.DateTime))
				}
			} else {
				orch, err := rt.orchestrator(nil)
				if err != nil {
					return err
				}
				t.Headers("NAME", "STATUS", "VERSION", "ENDPOINT", "CREATED")
				for _, c := range orch.Discover(ctx) {
					t.Row(c.Name, theme.RenderStatus(c.Status), utils.OrDash(c.Version),
						utils.OrDash(c.Endpoint), utils.TimeOrDash(c.CreatedAt, utils.DateTime))
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&instances, "instances", false, "list recorded instances instead of live clusters")
	return cmd
}

func parseTarget(s string) (eks.Target, error) {
	switch t := eks.Target(strings.ToUpper(s)); t {
	case eks.TargetActive, eks.TargetDeleted:
		return t, nil
	default:
		return "", fmt.Errorf("unknown target %q (want ACTIVE or DELETED)", s)
	}
}

func newWaitCmd(g *globalOptions) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "wait <cluster>",
		Short: "Block until a cluster is ACTIVE or DELETED",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tgt, err := parseTarget(target)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			rt, err := g.setup(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			orch, err := rt.orchestrator(func(obs eks.Observation) {
				status := utils.OrDash(obs.Status)
				fmt.Fprintf(out, "[%d/%d] %s: %s\n", obs.Attempt, obs.MaxAttempts, obs.Cluster, status)
			})
			if err != nil {
				return err
			}
			if err := orch.Wait(ctx, args[0], tgt); err != nil {
				return err
			}
			fmt.Fprintf(out, "Cluster %s is %s\n", args[0], tgt)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "for", string(eks.TargetActive), "target state: ACTIVE or DELETED")
	return cmd
}

func printEnrichment(w io.Writer, results []lifecycle.EnrichmentResult) {
	for _, r := range lifecycle.Failed(results) {
		fmt.Fprintln(w, theme.MutedStyle.Render("warning: "+r.String()))
	}
}
