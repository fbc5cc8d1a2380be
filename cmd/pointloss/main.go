// Package main provides the pointloss CLI entry point.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/orneryd/pointloss/pkg/chamfer"
	"github.com/orneryd/pointloss/pkg/compute"
	"github.com/orneryd/pointloss/pkg/compute/vulkan"
	"github.com/orneryd/pointloss/pkg/config"
	"github.com/orneryd/pointloss/pkg/match"
	"github.com/orneryd/pointloss/pkg/ply"
	"github.com/orneryd/pointloss/pkg/simd"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pointloss",
		Short: "Pointloss - Batched point-set distances for generative training",
		Long: `Pointloss computes structural losses between 3D point clouds:
the bidirectional nearest-neighbor (Chamfer) distance and an
approximate earth mover's distance via annealed refinement matching.

Input files may be ASCII PLY vertex lists or NumPy .npy arrays of
float32 coordinates, optionally gzip-compressed (.gz suffix).`,
	}
	rootCmd.PersistentFlags().String("config", "", "Config file path (default: search standard locations)")
	rootCmd.PersistentFlags().Int("workers", 0, "Max concurrent workers (0 = all CPUs)")
	rootCmd.PersistentFlags().String("backend", "", "Execution backend: cpu, vulkan")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pointloss v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	chamferCmd := &cobra.Command{
		Use:   "chamfer <cloud-a> <cloud-b>",
		Short: "Compute the Chamfer distance between two point clouds",
		Args:  cobra.ExactArgs(2),
		RunE:  runChamfer,
	}
	rootCmd.AddCommand(chamferCmd)

	emdCmd := &cobra.Command{
		Use:   "emd <cloud-a> <cloud-b>",
		Short: "Compute the approximate earth mover's distance between two point clouds",
		Args:  cobra.ExactArgs(2),
		RunE:  runEMD,
	}
	addScheduleFlags(emdCmd)
	rootCmd.AddCommand(emdCmd)

	reorderCmd := &cobra.Command{
		Use:   "reorder <cloud-a> <cloud-b> <output>",
		Short: "Reorder cloud B to follow cloud A's point order via the match plan",
		Long: `Reorder computes the match plan between cloud A and cloud B and writes
B's points permuted so each row follows its strongest correspondence
in A. Useful for visualizing what the matching actually pairs up.`,
		Args: cobra.ExactArgs(3),
		RunE: runReorder,
	}
	addScheduleFlags(reorderCmd)
	rootCmd.AddCommand(reorderCmd)

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show compute capabilities of this host",
		RunE:  runInfo,
	}
	rootCmd.AddCommand(infoCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addScheduleFlags(cmd *cobra.Command) {
	def := match.DefaultSchedule()
	cmd.Flags().Int("levels", def.Levels, "Refinement levels")
	cmd.Flags().Float32("init-temp", def.InitTemp, "Initial refinement temperature (squared-distance units)")
	cmd.Flags().Float32("temp-decay", def.TempDecay, "Per-level temperature decay factor")
	cmd.Flags().Int("alternations", def.Alternations, "Row/column rescaling passes per level")
}

// loadSetup resolves config file, environment and flags into a compute
// context plus the effective configuration.
func loadSetup(cmd *cobra.Command) (*compute.Context, *config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, nil, err
	}

	if cmd.Flags().Changed("workers") {
		cfg.Compute.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("backend") {
		cfg.Compute.Backend, _ = cmd.Flags().GetString("backend")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	cc, err := compute.New(cfg.ComputeConfig())
	if err != nil {
		return nil, nil, err
	}
	return cc, cfg, nil
}

// scheduleFromFlags overlays the schedule flags on the configured schedule.
func scheduleFromFlags(cmd *cobra.Command, cfg *config.Config) (match.Schedule, error) {
	sched := cfg.Match
	if cmd.Flags().Changed("levels") {
		sched.Levels, _ = cmd.Flags().GetInt("levels")
	}
	if cmd.Flags().Changed("init-temp") {
		sched.InitTemp, _ = cmd.Flags().GetFloat32("init-temp")
	}
	if cmd.Flags().Changed("temp-decay") {
		sched.TempDecay, _ = cmd.Flags().GetFloat32("temp-decay")
	}
	if cmd.Flags().Changed("alternations") {
		sched.Alternations, _ = cmd.Flags().GetInt("alternations")
	}
	return sched, sched.Validate()
}

func runChamfer(cmd *cobra.Command, args []string) error {
	cc, _, err := loadSetup(cmd)
	if err != nil {
		return err
	}

	d, err := ply.ReadFile(args[0])
	if err != nil {
		return err
	}
	q, err := ply.ReadFile(args[1])
	if err != nil {
		return err
	}

	dist, err := chamfer.Distance(cmd.Context(), cc, d, q)
	if err != nil {
		return err
	}
	for b, v := range dist {
		if len(dist) > 1 {
			fmt.Printf("batch %d: %g\n", b, v)
		} else {
			fmt.Printf("%g\n", v)
		}
	}
	return nil
}

func runEMD(cmd *cobra.Command, args []string) error {
	cc, cfg, err := loadSetup(cmd)
	if err != nil {
		return err
	}
	sched, err := scheduleFromFlags(cmd, cfg)
	if err != nil {
		return err
	}

	d, err := ply.ReadFile(args[0])
	if err != nil {
		return err
	}
	q, err := ply.ReadFile(args[1])
	if err != nil {
		return err
	}

	dist, err := match.EMD(cmd.Context(), cc, d, q, sched)
	if err != nil {
		return err
	}
	for b, v := range dist {
		if len(dist) > 1 {
			fmt.Printf("batch %d: %g\n", b, v)
		} else {
			fmt.Printf("%g\n", v)
		}
	}
	return nil
}

func runReorder(cmd *cobra.Command, args []string) error {
	cc, cfg, err := loadSetup(cmd)
	if err != nil {
		return err
	}
	sched, err := scheduleFromFlags(cmd, cfg)
	if err != nil {
		return err
	}

	d, err := ply.ReadFile(args[0])
	if err != nil {
		return err
	}
	q, err := ply.ReadFile(args[1])
	if err != nil {
		return err
	}

	if d.N != q.N {
		return fmt.Errorf("reorder needs equally sized clouds, got %d and %d points", d.N, q.N)
	}

	plan, _, err := match.Match(cmd.Context(), cc, d, q, sched)
	if err != nil {
		return err
	}
	idx := match.Correspondences(plan)

	// query point i takes the position of its strongest dataset match
	out := q.Clone()
	for b := 0; b < q.B; b++ {
		for i := 0; i < q.N; i++ {
			src := q.Point(b, i)
			dst := out.Point(b, int(idx[b*q.N+i]))
			copy(dst, src)
		}
	}
	return ply.WriteFile(args[2], out)
}

func runInfo(cmd *cobra.Command, args []string) error {
	fmt.Printf("pointloss v%s\n", version)
	fmt.Printf("cpus:         %d\n", runtime.NumCPU())

	info := simd.Info()
	fmt.Printf("simd:         %s\n", info.Implementation)

	if !vulkan.IsAvailable() {
		fmt.Println("vulkan:       not available")
		return nil
	}
	devices, err := vulkan.Devices()
	if err != nil {
		return err
	}
	fmt.Printf("vulkan:       %d device(s)\n", len(devices))
	for _, d := range devices {
		fmt.Printf("  [%d] %s (%s, api %s, %.1f GiB)\n",
			d.Index, d.Name, d.TypeString(), d.APIVersion,
			float64(d.MemoryBytes)/(1<<30))
	}
	return nil
}
