package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current device parameters",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d, err := openDevice()
		if err != nil {
			cobra.CheckErr(err)
		}

		for _, parameter := range []struct {
			name string
			read func() (int, error)
		}{
			{"X position", d.X},
			{"Y position", d.Y},
			{"Z position", d.Z},
			{"X tilt", d.XTilt},
			{"Laser intensity", d.LaserIntensity},
			{"Laser pulse intensity", d.LaserPulseIntensity},
			{"Laser pulse frequency", d.LaserPulseFrequency},
		} {
			value, err := parameter.read()
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to read %s: %w", parameter.name, err))
			}
			fmt.Printf("%-22s %d\n", parameter.name, value)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
