package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/osm-splitter/internal/config"
	"github.com/wegman-software/osm-splitter/internal/extract"
	"github.com/wegman-software/osm-splitter/internal/logger"
	"github.com/wegman-software/osm-splitter/internal/metrics"
	"github.com/wegman-software/osm-splitter/internal/strategy"
)

var (
	verbose         bool
	logFile         string
	metricsInterval time.Duration
	outputDir       string
	lowMemory       bool

	hardcut              bool
	softcut              bool
	softercut            bool
	supersoftercut       bool
	simplecut            bool
	cutAdministrative    bool
	cutHighway           bool
	cutAllBorders        bool
	cutRef               bool
	cutWater             bool
	keepLegacyIntRefTypo bool
)

var rootCmd = &cobra.Command{
	Use:   "splitter OSMFILE CONFIGFILE",
	Short: "Split a large OSM extract into smaller, reference-consistent extracts",
	Long: `splitter reads a single OSM stream and writes one OSM stream per
extract declared in CONFIGFILE, each a reference-consistent subset
selected either by geographic region (bounding box or polygon) or by
tag membership.

Exactly one strategy flag may be given; the default is --softercut.`,
	Args: cobra.ExactArgs(2),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logFile != "" {
			logger.InitWithFile(verbose, logFile)
		} else {
			logger.Init(verbose)
		}
	},
	PreRunE: validateFlags,
	RunE:    runSplit,
}

// validateFlags enforces the strategy flag group's mutual exclusion
// and the stdin/strategy restriction before any config or input file
// is touched, so a bad invocation fails fast.
func validateFlags(cmd *cobra.Command, args []string) error {
	set := 0
	for _, on := range []bool{hardcut, softcut, softercut, supersoftercut, simplecut,
		cutAdministrative, cutHighway, cutAllBorders, cutRef, cutWater} {
		if on {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("only one strategy flag may be given")
	}
	if len(args) > 0 && args[0] == "-" && !hardcut {
		return fmt.Errorf("stdin input (\"-\") is only supported with --hardcut")
	}
	if lowMemory && !hardcut {
		return fmt.Errorf("--low-memory is only supported with --hardcut")
	}
	return nil
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&metricsInterval, "metrics-interval", 0, "Interval for system metrics logging (0 disables)")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for extract output files (default: current directory)")
	rootCmd.Flags().BoolVar(&lowMemory, "low-memory", false, "Back hardcut's node/way trackers with memory-mapped scratch files instead of process memory")

	rootCmd.Flags().BoolVarP(&softcut, "softcut", "s", false, "Use the softcut strategy (way-reference-complete)")
	rootCmd.Flags().BoolVarP(&hardcut, "hardcut", "h", false, "Use the hardcut strategy (single pass, rebuilds ways/relations)")
	rootCmd.Flags().BoolVarP(&softercut, "softercut", "r", false, "Use the softercut strategy (way- and relation-member-complete; default)")
	rootCmd.Flags().BoolVar(&supersoftercut, "supersoftercut", false, "Use the supersoftercut strategy (softercut plus relation cascade)")
	rootCmd.Flags().BoolVarP(&simplecut, "simplecut", "p", false, "Use the simplecut strategy (whole-object inclusion, no reference closure)")
	rootCmd.Flags().BoolVarP(&cutAdministrative, "cut_administrative", "c", false, "Select boundary=administrative relations and their ways")
	rootCmd.Flags().BoolVarP(&cutHighway, "cut_highway", "w", false, "Select ways/relations carrying a highway tag")
	rootCmd.Flags().BoolVarP(&cutAllBorders, "cut_all_borders", "b", false, "Select administrative/territorial boundaries plus a fixed id whitelist")
	rootCmd.Flags().BoolVarP(&cutRef, "cut_ref", "e", false, "Select ways/relations carrying a ref-family tag")
	rootCmd.Flags().BoolVar(&cutWater, "cut_water", false, "Select coastline ways")
	rootCmd.Flags().BoolVar(&keepLegacyIntRefTypo, "keep-legacy-int-ref-typo", true, "cut_ref: also match the legacy \" int_ref\" leading-space key")
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	os.Exit(1)
}

// selectStrategy builds the one requested strategy over exs. Exactly
// one flag (or none, which defaults to softercut) is expected to be
// set; validateFlags guarantees at most one is true. err is non-nil
// only for --hardcut --low-memory, where building the disk-backed
// trackers can fail.
func selectStrategy(exs []*extract.Extract) (s strategy.Strategy, usedDefault bool, err error) {
	switch {
	case hardcut && lowMemory:
		h, err := strategy.NewHardcutLowMemory(exs)
		return h, false, err
	case hardcut:
		return strategy.NewHardcut(exs), false, nil
	case softcut:
		return strategy.NewSoftcut(exs), false, nil
	case supersoftercut:
		return strategy.NewSuperSoftercut(exs), false, nil
	case simplecut:
		return strategy.NewSimplecut(exs), false, nil
	case cutAdministrative:
		return strategy.NewCutAdministrative(exs), false, nil
	case cutHighway:
		return strategy.NewCutHighway(exs), false, nil
	case cutAllBorders:
		return strategy.NewCutAllBorders(exs), false, nil
	case cutRef:
		return strategy.NewCutRef(exs, keepLegacyIntRefTypo), false, nil
	case cutWater:
		return strategy.NewCutWater(exs), false, nil
	case softercut:
		return strategy.NewSoftercut(exs), false, nil
	default:
		return strategy.NewSoftercut(exs), true, nil
	}
}

func runSplit(cmd *cobra.Command, args []string) error {
	osmFile, configFile := args[0], args[1]
	log := logger.Get()

	entries, err := config.Load(configFile)
	if err != nil {
		exitWithError("failed to read configuration", err)
	}
	if len(entries) == 0 {
		exitWithError("no usable extracts found in configuration", nil)
	}

	exs, err := config.OpenExtracts(entries, outputDir)
	if err != nil {
		exitWithError("failed to open extract outputs", err)
	}
	defer func() {
		if cerr := extract.CloseAll(exs); cerr != nil {
			log.Warn("failed to close one or more extract outputs", zap.Error(cerr))
		}
	}()

	s, usedDefault, err := selectStrategy(exs)
	if err != nil {
		exitWithError("failed to build strategy", err)
	}
	if usedDefault {
		log.Debug("no strategy flag given, defaulting to softercut")
	}
	if h, ok := s.(*strategy.Hardcut); ok {
		defer func() {
			if cerr := h.Close(); cerr != nil {
				log.Warn("failed to clean up low-memory trackers", zap.Error(cerr))
			}
		}()
	}

	var cancel context.CancelFunc
	if metricsInterval > 0 {
		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		defer cancel()
		collector := metrics.NewCollector(metricsInterval, log, s.Segments)
		go collector.Start(ctx)
	}

	log.Info("starting split",
		zap.String("input", osmFile),
		zap.String("config", configFile),
		zap.Int("extracts", len(exs)),
	)

	start := time.Now()
	if err := strategy.Run(osmFile, s); err != nil {
		exitWithError("split failed", err)
	}

	log.Info("split complete", zap.Duration("duration", time.Since(start).Round(time.Second)))
	return nil
}
