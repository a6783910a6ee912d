package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tasnim.dev/eks-lifecycle/internal/aws/eks"
	awss3 "tasnim.dev/eks-lifecycle/internal/aws/s3"
)

func writeKubeconfig(w io.Writer, kc *eks.KubeConfig, output string) error {
	var (
		data []byte
		err  error
	)
	switch output {
	case "yaml", "":
		data, err = kc.YAML()
	case "json":
		data, err = kc.JSON()
	default:
		return fmt.Errorf("unknown output format %q (want yaml or json)", output)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func newKubeconfigCmd(g *globalOptions) *cobra.Command {
	var (
		output    string
		published bool
		verify    bool
	)

	cmd := &cobra.Command{
		Use:   "kubeconfig <cluster>",
		Short: "Print a kubeconfig with a fresh bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := g.setup(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			if published {
				if rt.cfg.KubeconfigBucket == "" {
					return fmt.Errorf("--published requires kubeconfig_bucket in the config file")
				}
				data, err := rt.aws.S3.Get(ctx, rt.cfg.KubeconfigBucket, awss3.KubeconfigKey(rt.cfg.DeploymentID, args[0]))
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			orch, err := rt.orchestrator(nil)
			if err != nil {
				return err
			}
			kc, err := orch.IssueKubeconfig(ctx, args[0])
			if err != nil {
				return err
			}
			if err := kc.Validate(); err != nil {
				return err
			}

			if verify {
				cluster := kc.Clusters[0].Cluster
				client, err := eks.NewK8sClient(cluster.Server, cluster.CertificateAuthorityData,
					eks.NewTokenProvider(rt.aws.Issuer, args[0]))
				if err != nil {
					return err
				}
				version, err := client.ServerVersion(ctx)
				if err != nil {
					return fmt.Errorf("verifying kubeconfig: %w", err)
				}
				rt.log.Infow("API server reachable", "cluster", args[0], "version", version)
			}

			return writeKubeconfig(cmd.OutOrStdout(), kc, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml or json")
	cmd.Flags().BoolVar(&published, "published", false, "print the copy published to the kubeconfig bucket")
	cmd.Flags().BoolVar(&verify, "verify", false, "check the API server accepts the token before printing")
	return cmd
}

func newTokenCmd(g *globalOptions) *cobra.Command {
	var decode bool

	cmd := &cobra.Command{
		Use:   "token <cluster>",
		Short: "Print an ExecCredential for kubectl's exec plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := g.setup(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			tok, err := rt.aws.Issuer.Token(ctx, args[0])
			if err != nil {
				return err
			}
			if decode {
				url, err := eks.DecodeToken(tok.Value)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), url)
				return err
			}
			data, err := eks.ExecCredential(tok)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	cmd.Flags().BoolVar(&decode, "decode", false, "print the presigned STS URL behind the token instead")
	return cmd
}

func newRefreshKubeconfigCmd(g *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "refresh-kubeconfig <instance|cluster>",
		Short: "Issue a new token for an active instance and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := g.setup(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			inst, err := rt.resolveInstance(ctx, args[0])
			if err != nil {
				return err
			}
			orch, err := rt.orchestrator(nil)
			if err != nil {
				return err
			}
			kc, err := orch.RefreshKubeconfig(ctx, inst.ID)
			if err != nil {
				return err
			}
			return writeKubeconfig(cmd.OutOrStdout(), kc, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml or json")
	return cmd
}
