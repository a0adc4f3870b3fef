package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/irmandos/netboot/boot"
	"github.com/irmandos/netboot/hostname"
	"github.com/irmandos/netboot/inspect"
	"github.com/irmandos/netboot/install"
	"github.com/irmandos/netboot/lib"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			lib.PrintWarning("interrupted")
			os.Exit(130)
		}
		lib.PrintError(err.Error())
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var logPath string

	root := &cobra.Command{
		Use:           "netboot",
		Short:         "Provision a ZFS-root Ubuntu system over the network",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&logPath, "command-log", "", "Append every external command and its output to this file")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if logPath == "" {
			return nil
		}
		return lib.EnableCommandLogging(logPath)
	}

	root.AddCommand(
		newInspectCommand(),
		newHostnameCommand(),
		newPlanCommand(),
		newInstallCommand(),
		newFetchCommand(),
	)
	return root
}

func inspectHost(hibernate bool, swapGiB uint32) (inspect.HostProfile, error) {
	return inspect.Inspect(lib.ExecRunner{}, inspect.Policy{
		Hibernation: hibernate,
		SwapGiB:     swapGiB,
	})
}

func newInspectCommand() *cobra.Command {
	var (
		hibernate bool
		swapGiB   uint32
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Probe firmware, memory, chassis class, and the primary interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := inspectHost(hibernate, swapGiB)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Firmware:    %s\n", profile.Firmware)
			fmt.Fprintf(out, "Memory:      %d MiB\n", profile.MemoryBytes/(1024*1024))
			fmt.Fprintf(out, "Chassis:     %s\n", profile.Chassis)
			fmt.Fprintf(out, "Interface:   %s\n", profile.PrimaryInterface)
			fmt.Fprintf(out, "MAC:         %s\n", profile.PrimaryMAC)
			fmt.Fprintf(out, "Hibernation: %t\n", profile.HibernationRequested)
			if profile.HibernationRequested {
				fmt.Fprintf(out, "Swap:        %d GiB requested\n", profile.SwapRequestedGiB)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&hibernate, "hibernate", false, "Plan for hibernation support")
	cmd.Flags().Uint32Var(&swapGiB, "swap", 0, "Requested swap size in GiB")

	return cmd
}

func newHostnameCommand() *cobra.Command {
	var (
		domain string
		apply  bool
		root   string
	)

	cmd := &cobra.Command{
		Use:   "hostname",
		Short: "Derive the deterministic hostname for this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := inspectHost(false, 0)
			if err != nil {
				return err
			}

			rec := hostname.Derive(profile.PrimaryMAC, profile.Chassis, domain)
			fmt.Fprintln(cmd.OutOrStdout(), rec.FQDN)

			if apply {
				if err := hostname.Apply(root, rec); err != nil {
					return err
				}
				lib.PrintSuccess("applied to " + root)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&domain, "domain", lib.GetEnv("DOMAIN", "local"), "DNS domain for the FQDN")
	cmd.Flags().BoolVar(&apply, "apply", false, "Write etc/hostname and reconcile etc/hosts under --root")
	cmd.Flags().StringVar(&root, "root", "/", "Filesystem root to apply the hostname to")

	return cmd
}

func newPlanCommand() *cobra.Command {
	var (
		disk      string
		hibernate bool
		swapGiB   uint32
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the partition plan and pool layout without touching the disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			if disk == "" {
				return fmt.Errorf("no disk given; set --disk or DISK")
			}

			profile, err := inspectHost(hibernate, swapGiB)
			if err != nil {
				return err
			}

			target := lib.ResolveByID(disk)
			capacity, err := lib.DiskSizeBytes(target)
			if err != nil {
				return fmt.Errorf("sizing %s: %w", target, err)
			}

			plan, err := install.BuildPlan(profile, target, capacity)
			if err != nil {
				return err
			}
			topo := install.BuildTopology(plan)

			data, err := yaml.Marshal(planReport(plan, topo))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&disk, "disk", os.Getenv("DISK"), "Target disk device")
	cmd.Flags().BoolVar(&hibernate, "hibernate", false, "Plan for hibernation support")
	cmd.Flags().Uint32Var(&swapGiB, "swap", 0, "Requested swap size in GiB")

	return cmd
}

type partitionReport struct {
	Index  int    `yaml:"index"`
	Role   string `yaml:"role"`
	Start  uint64 `yaml:"startSector"`
	Size   uint64 `yaml:"sizeSectors"`
	Type   string `yaml:"typeCode"`
	Device string `yaml:"device"`
}

type poolReport struct {
	Name     string   `yaml:"name"`
	Device   string   `yaml:"device"`
	Datasets []string `yaml:"datasets"`
}

type layoutReport struct {
	Disk       string            `yaml:"disk"`
	Partitions []partitionReport `yaml:"partitions"`
	Pools      []poolReport      `yaml:"pools"`
}

func planReport(plan install.PartitionPlan, topo install.PoolTopology) layoutReport {
	report := layoutReport{Disk: plan.Disk}
	for _, p := range plan.Partitions {
		report.Partitions = append(report.Partitions, partitionReport{
			Index:  p.Index,
			Role:   p.Role.String(),
			Start:  p.StartSector,
			Size:   p.SizeSectors,
			Type:   p.TypeCode,
			Device: plan.DevicePath(p),
		})
	}
	for _, pool := range topo.Pools() {
		pr := poolReport{Name: pool.Name, Device: pool.Device}
		for _, ds := range pool.Datasets {
			pr.Datasets = append(pr.Datasets, pool.Name+"/"+ds.Name)
		}
		report.Pools = append(report.Pools, pr)
	}
	return report
}

func newInstallCommand() *cobra.Command {
	var (
		disk string
		yes  bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Partition the disk, create the pools, and install the base system",
		RunE: func(cmd *cobra.Command, args []string) error {
			state := install.NewState()
			if disk != "" {
				state.Disk = disk
			}
			if state.Disk == "" {
				return fmt.Errorf("no disk given; set --disk or DISK")
			}

			profile, err := inspectHost(state.Hibernation, state.SwapGiB)
			if err != nil {
				return err
			}
			state.Profile = profile
			state.Record = hostname.Derive(profile.PrimaryMAC, profile.Chassis, state.Domain)

			target := lib.ResolveByID(state.Disk)
			capacity, err := lib.DiskSizeBytes(target)
			if err != nil {
				return fmt.Errorf("sizing %s: %w", target, err)
			}
			plan, err := install.BuildPlan(profile, target, capacity)
			if err != nil {
				return err
			}
			state.Plan = plan
			state.Topology = install.BuildTopology(plan)

			executor := install.NewExecutor(state, lib.ExecRunner{})
			executor.PrintWarnings()

			if !yes && !lib.AskYesNo("\nType 'destroy' to continue: ", "destroy") {
				lib.PrintInfo("aborted, nothing was changed")
				return nil
			}

			return executor.Execute(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&disk, "disk", "", "Target disk device (overrides DISK)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")

	return cmd
}

func newFetchCommand() *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the artifacts named on the kernel command line",
		RunE: func(cmd *cobra.Command, args []string) error {
			return boot.Fetch(boot.ReadParams(), dest)
		},
	}

	cmd.Flags().StringVar(&dest, "dest", "/run/netboot", "Directory to download artifacts into")

	return cmd
}
