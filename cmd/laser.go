package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var laserCmd = &cobra.Command{
	Use:   "laser",
	Short: "Control the laser",
}

var laserIntensityCmd = &cobra.Command{
	Use:   "intensity VALUE",
	Short: "Set the continuous laser intensity",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		value, err := parseUint16Arg(args[0])
		if err != nil {
			cobra.CheckErr(err)
		}
		d, err := openDevice()
		if err != nil {
			cobra.CheckErr(err)
		}
		if err := d.SetLaserIntensity(value); err != nil {
			cobra.CheckErr(fmt.Errorf("failed to set laser intensity: %w", err))
		}
		fmt.Printf("Laser intensity set to %d\n", value)
	},
}

var (
	pulseIntensity int
	pulseFrequency int
)

var laserPulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Fire a single laser pulse",
	Long:  "Fire a single laser pulse. Pulse intensity and frequency are only changed when the respective flag is given.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d, err := openDevice()
		if err != nil {
			cobra.CheckErr(err)
		}

		intensity, frequency := -1, -1
		if cmd.Flags().Changed("intensity") {
			intensity = pulseIntensity
		}
		if cmd.Flags().Changed("frequency") {
			frequency = pulseFrequency
		}

		if err := d.FireLaserPulse(intensity, frequency); err != nil {
			cobra.CheckErr(fmt.Errorf("failed to fire laser pulse: %w", err))
		}
		fmt.Println("Laser pulse fired")
	},
}

var laserReflectionCmd = &cobra.Command{
	Use:   "reflection",
	Short: "Read the laser reflection at the current position",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d, err := openDevice()
		if err != nil {
			cobra.CheckErr(err)
		}
		value, err := d.LaserReflectionValue()
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to read laser reflection: %w", err))
		}
		fmt.Printf("Laser reflection: %d\n", value)
	},
}

func parseUint16Arg(arg string) (int, error) {
	var value int
	if _, err := fmt.Sscanf(arg, "%d", &value); err != nil || value < 0 || value > 0xffff {
		return 0, fmt.Errorf("value %q is not an integer between 0 and 65535", arg)
	}
	return value, nil
}

func init() {
	laserPulseCmd.Flags().IntVar(&pulseIntensity, "intensity", 0, "pulse intensity to set before firing")
	laserPulseCmd.Flags().IntVar(&pulseFrequency, "frequency", 0, "pulse frequency to set before firing")

	laserCmd.AddCommand(laserIntensityCmd)
	laserCmd.AddCommand(laserPulseCmd)
	laserCmd.AddCommand(laserReflectionCmd)
	rootCmd.AddCommand(laserCmd)
}
