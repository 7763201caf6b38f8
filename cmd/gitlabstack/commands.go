package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/gitlabstack/internal/core/deployment"
	coredns "github.com/artpar/gitlabstack/internal/core/dns"
	"github.com/artpar/gitlabstack/internal/core/domain"
	"github.com/artpar/gitlabstack/internal/core/monitoring"
	"github.com/artpar/gitlabstack/internal/core/schedule"
	"github.com/artpar/gitlabstack/internal/core/validation"
	"github.com/artpar/gitlabstack/internal/shell/dns"
	"github.com/artpar/gitlabstack/internal/shell/provider"
	"github.com/artpar/gitlabstack/internal/shell/render"
	"github.com/artpar/gitlabstack/internal/shell/workers"
)

const lookupTimeout = 30 * time.Second

// =============================================================================
// version
// =============================================================================

func newCmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// no configuration needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gitlabstack %s (built %s)\n", Version, BuildTime)
		},
	}
}

// =============================================================================
// validate
// =============================================================================

func newCmdValidate(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the deployment configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.logger.Info("configuration is valid",
				"domain", s.DomainName,
				"instance_type", s.InstanceType,
				"architecture", s.Architecture,
			)
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}
}

// =============================================================================
// plan
// =============================================================================

func newCmdPlan(a *app) *cobra.Command {
	var asJSON bool
	var runs int

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build the resource plan and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := a.plan(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.logger.Info("plan built", "plan_id", plan.ID, "resources", len(plan.Resources))

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}
			return printPlan(cmd.OutOrStdout(), plan, time.Now(), runs)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full plan as JSON")
	cmd.Flags().IntVar(&runs, "runs", 3, "Number of upcoming schedule runs to show")
	return cmd
}

func printPlan(w io.Writer, plan *domain.ResourcePlan, now time.Time, runs int) error {
	fmt.Fprintf(w, "Plan %s for %s\n\n", plan.ID, plan.Environment.Region)

	fmt.Fprintln(w, "Resources:")
	for _, r := range plan.Resources {
		action := "create"
		if r.Imported {
			action = "import"
		}
		fmt.Fprintf(w, "  %-7s %-28s %s\n", action, r.Kind, r.ID)
	}

	if len(plan.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warning := range plan.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}

	fmt.Fprintln(w, "\nOutputs:")
	for _, o := range plan.Outputs {
		fmt.Fprintf(w, "  %-22s %s\n", o.Name, o.Value)
	}

	if runs > 0 {
		fmt.Fprintln(w, "\nUpcoming schedule runs (UTC):")
		for _, r := range plan.ResourcesOfKind(domain.KindSchedule) {
			s := r.Properties.(domain.ScheduleProperties)
			times, err := schedule.NextRuns(s.Expression, now, runs)
			if err != nil {
				return err
			}
			for _, t := range times {
				fmt.Fprintf(w, "  %-28s %s\n", s.Name, t.Format("Mon 2006-01-02 15:04"))
			}
		}
	}
	return nil
}

// =============================================================================
// synth
// =============================================================================

func newCmdSynth(a *app) *cobra.Command {
	var format string
	var outPath string
	var lookup bool

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Render the CloudFormation template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if lookup && s.SubnetID == "" {
				insp, err := a.inspector()
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), lookupTimeout)
				defer cancel()
				vpc, err := insp.LookupVPC(ctx, s.VPCID)
				if err != nil {
					return &CommandError{Op: "lookup VPC", Err: err, ExitCode: ExitLookupError}
				}
				if vpc.PublicSubnetID == "" {
					return &CommandError{
						Op:       "lookup VPC",
						Err:      fmt.Errorf("no public subnet found in %s", s.VPCID),
						ExitCode: ExitLookupError,
					}
				}
				a.logger.Info("using public subnet", "vpc_id", s.VPCID, "subnet_id", vpc.PublicSubnetID)
				s.SubnetID = vpc.PublicSubnetID
			}

			plan, err := deployment.Build(a.cfg.AWS.Environment(), s)
			if err != nil {
				return &CommandError{Op: "plan", Err: err, ExitCode: ExitRenderError}
			}
			a.logWarnings(plan)

			tmpl, err := render.CloudFormation(plan)
			if err != nil {
				return &CommandError{Op: "render", Err: err, ExitCode: ExitRenderError}
			}
			out, err := tmpl.Marshal(render.Format(format))
			if err != nil {
				return &CommandError{Op: "render", Err: err, ExitCode: ExitRenderError}
			}

			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if err := os.WriteFile(outPath, out, 0644); err != nil {
				return &CommandError{Op: "write template", Err: err, ExitCode: ExitRenderError}
			}
			a.logger.Info("template written", "path", outPath, "format", format, "resources", len(tmpl.Resources))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(render.FormatJSON), "Template format (json|yaml)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the template to a file instead of stdout")
	cmd.Flags().BoolVar(&lookup, "lookup", false, "Resolve the VPC's public subnet when SUBNET_ID is unset")
	return cmd
}

// =============================================================================
// preflight
// =============================================================================

func newCmdPreflight(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check the target account for the VPC and machine image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			insp, err := a.inspector()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), lookupTimeout)
			defer cancel()
			result, err := provider.RunPreflight(ctx, insp, a.cfg.AWS.Region, s)
			if err != nil {
				return &CommandError{Op: "preflight", Err: err, ExitCode: ExitLookupError}
			}

			w := cmd.OutOrStdout()
			for _, warning := range result.Warnings {
				fmt.Fprintf(w, "warning: %s\n", warning)
			}
			for _, problem := range result.Problems {
				fmt.Fprintf(w, "problem: %s\n", problem)
			}
			if !result.OK() {
				return &CommandError{
					Op:       "preflight",
					Err:      fmt.Errorf("%d problem(s) found", len(result.Problems)),
					ExitCode: ExitValidationError,
				}
			}
			fmt.Fprintln(w, "preflight passed")
			return nil
		},
	}
}

// =============================================================================
// verify-dns
// =============================================================================

func newCmdVerifyDNS(a *app) *cobra.Command {
	var expectedIP string
	var hostname string

	cmd := &cobra.Command{
		Use:   "verify-dns",
		Short: "Check that the GitLab hostname resolves to the Elastic IP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if hostname == "" {
				hostname = a.hostname()
			}
			if err := coredns.ValidateHostname(hostname); err != nil {
				return &CommandError{Op: "verify-dns", Err: err, ExitCode: ExitConfigError}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), lookupTimeout)
			defer cancel()
			input := dns.NewResolver().Resolve(ctx, hostname)
			result := coredns.Verify(input, expectedIP)
			if !result.Verified {
				return &CommandError{Op: "verify-dns", Err: errors.New(result.Error), ExitCode: ExitLookupError}
			}

			a.logger.Info("DNS verified", "hostname", hostname, "ip", expectedIP)
			fmt.Fprintf(cmd.OutOrStdout(), "%s resolves to %s\n", hostname, expectedIP)
			return nil
		},
	}
	cmd.Flags().StringVar(&expectedIP, "ip", "", "Expected Elastic IP address")
	cmd.Flags().StringVar(&hostname, "host", "", "Hostname to check (default: DOMAIN_NAME)")
	_ = cmd.MarkFlagRequired("ip")
	return cmd
}

// =============================================================================
// wait
// =============================================================================

func newCmdWait(a *app) *cobra.Command {
	var expectedIP string
	var timeout time.Duration
	config := workers.DefaultReadinessConfig()

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait until the deployed instance resolves and serves GitLab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.Hostname = a.hostname()
			if err := coredns.ValidateHostname(config.Hostname); err != nil {
				return &CommandError{Op: "wait", Err: err, ExitCode: ExitConfigError}
			}
			config.ExpectedIP = expectedIP

			waiter := workers.NewReadinessWaiter(
				dns.NewResolver(),
				nil,
				monitoring.Probes(config.Hostname),
				config,
				a.logger,
			)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			report, err := waiter.Wait(ctx)

			w := cmd.OutOrStdout()
			for _, r := range report.Probes {
				fmt.Fprintln(w, monitoring.ProbeMessage(r))
			}
			if err != nil {
				reason := fmt.Errorf("not ready after %s: health %s", timeout, report.Health)
				if !report.DNS.Verified {
					reason = fmt.Errorf("not ready after %s: %s", timeout, report.DNS.Error)
				}
				return &CommandError{Op: "wait", Err: reason, ExitCode: ExitLookupError}
			}
			fmt.Fprintf(w, "%s is ready\n", config.Hostname)
			return nil
		},
	}
	cmd.Flags().StringVar(&expectedIP, "ip", "", "Expected Elastic IP address (skip DNS check if empty)")
	cmd.Flags().DurationVar(&timeout, "timeout", 20*time.Minute, "Give up after this long")
	cmd.Flags().DurationVar(&config.Interval, "interval", config.Interval, "Time between checks")
	return cmd
}

// =============================================================================
// Helpers
// =============================================================================

// hostname returns the configured GitLab domain name.
func (a *app) hostname() string {
	if a.cfg.Stack.DomainName != "" {
		return a.cfg.Stack.DomainName
	}
	return domain.DefaultDomainName
}

// settings validates the loaded configuration and prints every violation.
func (a *app) settings(stderr io.Writer) (domain.Settings, error) {
	s, err := validation.Validate(a.cfg.AWS.Environment(), a.cfg.Stack)
	if err != nil {
		var vErr *validation.ValidationError
		if errors.As(err, &vErr) {
			for _, v := range vErr.Violations {
				fmt.Fprintf(stderr, "  %s\n", v)
			}
		}
		return domain.Settings{}, &CommandError{Op: "validate", Err: err, ExitCode: ExitValidationError}
	}
	return s, nil
}

func (a *app) plan(stderr io.Writer) (*domain.ResourcePlan, error) {
	s, err := a.settings(stderr)
	if err != nil {
		return nil, err
	}
	plan, err := deployment.Build(a.cfg.AWS.Environment(), s)
	if err != nil {
		return nil, &CommandError{Op: "plan", Err: err, ExitCode: ExitRenderError}
	}
	a.logWarnings(plan)
	return plan, nil
}

func (a *app) inspector() (*provider.AWSInspector, error) {
	insp, err := provider.NewAWSInspector(a.cfg.AWS.Credentials, a.cfg.AWS.Region, a.logger)
	if err != nil {
		return nil, &CommandError{Op: "aws credentials", Err: err, ExitCode: ExitConfigError}
	}
	return insp, nil
}

func (a *app) logWarnings(plan *domain.ResourcePlan) {
	for _, warning := range plan.Warnings {
		a.logger.Warn(warning, "plan_id", plan.ID)
	}
}
