package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dltsctl/config"
	"dltsctl/scan"

	"github.com/spf13/cobra"
)

var (
	scanXLow  int
	scanXHigh int
	scanYLow  int
	scanYHigh int
	scanXStep int
	scanYStep int

	scanXDelay int
	scanYDelay int

	scanXTilt     int
	scanZPosition int
	scanIntensity int

	scanTurnOffDelay int

	scanAutoFocus bool
	scanLaserMin  int
	scanLaserMax  int
	scanLaserStep int
	scanOutputDir string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run an area scan",
	Long:  "Run an area scan of the given type over the configured area and write the resulting channel images as PGM files.",
}

func scanVariantCmd(use, short string, variant func() scan.Variant) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runScan(cmd, variant())
		},
	}
}

// checkScanParameters rejects step sizes the sweep position formulas
// cannot handle, before any command reaches the device.
func checkScanParameters(laserSweep bool) error {
	if scanXStep < 1 || scanYStep < 1 {
		return fmt.Errorf("step sizes must be at least 1, got --x-step %d --y-step %d",
			scanXStep, scanYStep)
	}
	if laserSweep && scanLaserStep < 1 {
		return fmt.Errorf("laser intensity step must be at least 1, got --laser-step %d",
			scanLaserStep)
	}
	return nil
}

func runScan(cmd *cobra.Command, variant scan.Variant) {
	if err := checkScanParameters(cmd.Flags().Changed("laser-step")); err != nil {
		cobra.CheckErr(err)
	}

	d, err := openDevice()
	if err != nil {
		cobra.CheckErr(err)
	}

	area := scan.NewAreaConfig(scanXLow, scanXHigh, scanYLow, scanYHigh,
		scanXStep, scanYStep, scanXDelay, scanYDelay)
	opts := scan.Options{
		PositioningTime:      config.PositioningTime,
		AutoFocus:            scanAutoFocus,
		ImageRebuildInterval: config.ImageRebuildInterval,
	}
	if cmd.Flags().Changed("tilt") {
		opts.XTilt = &scanXTilt
	}
	if cmd.Flags().Changed("z") {
		opts.ZPosition = &scanZPosition
	}
	if cmd.Flags().Changed("intensity") {
		opts.LaserIntensity = &scanIntensity
	}
	if cmd.Flags().Changed("laser-min") {
		opts.LaserMinIntensity = &scanLaserMin
	}
	if cmd.Flags().Changed("laser-max") {
		opts.LaserMaxIntensity = &scanLaserMax
	}
	if cmd.Flags().Changed("laser-step") {
		opts.LaserStepIntensity = &scanLaserStep
		steps := (scanLaserMax-scanLaserMin)/scanLaserStep + 1
		area = area.WithIntensityMultiplier(steps)
	}

	s := scan.New(area, variant, opts)
	fmt.Printf("Starting %s: %d points over [%d, %d] x [%d, %d]\n",
		s.Name(), s.Capacity(), scanXLow, scanXHigh, scanYLow, scanYHigh)

	if err := d.StartScan(s); err != nil {
		cobra.CheckErr(fmt.Errorf("failed to start scan: %w", err))
	}

	for !s.IsFinished() {
		time.Sleep(time.Second)
		fmt.Printf("\r%6.2f%% (%d of %d points)", s.Progress()*100,
			s.PointsReceived(), s.Capacity())
	}
	fmt.Println()

	switch {
	case s.IsCompleted():
		fmt.Printf("Scan completed in %s\n", s.Duration().Round(time.Second))
	case s.IsAborted():
		fmt.Printf("Scan aborted after %s\n", s.Duration().Round(time.Second))
	default:
		fmt.Printf("Scan failed after %s with %d of %d points, run with -v for details\n",
			s.Duration().Round(time.Second), s.PointsReceived(), s.Capacity())
	}

	for _, img := range s.Images() {
		path, err := writeImage(img, scanOutputDir)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to write image %q: %w", img.Name(), err))
		}
		fmt.Printf("Wrote %s\n", path)
	}
}

// writeImage writes the image as a plain (P2) PGM file named after its
// channel and returns the path.
func writeImage(img *scan.Image, dir string) (string, error) {
	name := strings.ToLower(strings.ReplaceAll(img.Name(), " ", "-"))
	path := filepath.Join(dir, name+".pgm")

	var b strings.Builder
	resolutionX, resolutionY := img.Resolution()
	fmt.Fprintf(&b, "P2\n%d %d\n65535\n", resolutionX, resolutionY)
	for row := 0; row < resolutionY; row++ {
		for col := 0; col < resolutionX; col++ {
			if col > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%d", img.At(row, col))
		}
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func init() {
	flags := scanCmd.PersistentFlags()
	flags.IntVar(&scanXLow, "x-low", 0, "low x bound of the scan area")
	flags.IntVar(&scanXHigh, "x-high", 4095, "high x bound of the scan area")
	flags.IntVar(&scanYLow, "y-low", 0, "low y bound of the scan area")
	flags.IntVar(&scanYHigh, "y-high", 4095, "high y bound of the scan area")
	flags.IntVar(&scanXStep, "x-step", 16, "step size along x")
	flags.IntVar(&scanYStep, "y-step", 16, "step size along y")
	flags.IntVar(&scanXDelay, "x-delay", 0, "delay per x step in milliseconds")
	flags.IntVar(&scanYDelay, "y-delay", 0, "delay per y step in milliseconds")
	flags.IntVar(&scanXTilt, "tilt", 0, "x tilt during the scan")
	flags.IntVar(&scanZPosition, "z", 0, "z position during the scan")
	flags.IntVar(&scanIntensity, "intensity", 0, "laser intensity during the scan")
	flags.StringVarP(&scanOutputDir, "output", "o", ".", "directory the channel images are written to")

	reflection := scanVariantCmd("reflection", "Scan the laser reflection", func() scan.Variant {
		return scan.NewReflection()
	})
	latchup := scanVariantCmd("latchup", "Scan for single event latch-ups", func() scan.Variant {
		return scan.NewLatchup(scanTurnOffDelay)
	})
	latchup.Flags().IntVar(&scanTurnOffDelay, "turn-off-delay", 1, "power turn-off delay after a latch-up in milliseconds")
	current := scanVariantCmd("current", "Scan latch-up current, reflection and base current", func() scan.Variant {
		return scan.NewCurrent()
	})
	parallel := scanVariantCmd("parallel", "Scan latch-up current, reflection and voltage in one pass", func() scan.Variant {
		return scan.NewParallel()
	})
	parallel.Flags().BoolVar(&scanAutoFocus, "autofocus", false, "run the firmware autofocus before the scan")
	multi := scanVariantCmd("multi", "Scan over a range of laser intensities", func() scan.Variant {
		return scan.NewMultiIntensity(scanTurnOffDelay)
	})
	multi.Flags().IntVar(&scanTurnOffDelay, "turn-off-delay", 1, "power turn-off delay after a latch-up in milliseconds")
	multi.Flags().BoolVar(&scanAutoFocus, "autofocus", false, "run the firmware autofocus before the scan")
	multi.Flags().IntVar(&scanLaserMin, "laser-min", 0, "lowest laser intensity of the sweep")
	multi.Flags().IntVar(&scanLaserMax, "laser-max", 0, "highest laser intensity of the sweep")
	multi.Flags().IntVar(&scanLaserStep, "laser-step", 0, "laser intensity step of the sweep")

	scanCmd.AddCommand(reflection, latchup, current, parallel, multi)
	rootCmd.AddCommand(scanCmd)
}
