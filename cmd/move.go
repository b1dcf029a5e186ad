package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	moveX    int
	moveY    int
	moveZ    int
	moveTilt int
)

var moveCmd = &cobra.Command{
	Use:   "move",
	Short: "Move the stages of the device",
	Long:  "Move the stages of the device. Only the axes given as flags are moved.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d, err := openDevice()
		if err != nil {
			cobra.CheckErr(err)
		}

		moved := false
		for _, axis := range []struct {
			name  string
			flag  string
			value int
			set   func(int) error
		}{
			{"x", "x", moveX, d.SetX},
			{"y", "y", moveY, d.SetY},
			{"z", "z", moveZ, d.SetZ},
			{"x tilt", "tilt", moveTilt, d.SetXTilt},
		} {
			if !cmd.Flags().Changed(axis.flag) {
				continue
			}
			if err := axis.set(axis.value); err != nil {
				cobra.CheckErr(fmt.Errorf("failed to move %s to %d: %w", axis.name, axis.value, err))
			}
			fmt.Printf("Moved %s to %d\n", axis.name, axis.value)
			moved = true
		}
		if !moved {
			cobra.CheckErr(fmt.Errorf("no axis given, use --x, --y, --z or --tilt"))
		}
	},
}

func init() {
	moveCmd.Flags().IntVar(&moveX, "x", 0, "x position to move to")
	moveCmd.Flags().IntVar(&moveY, "y", 0, "y position to move to")
	moveCmd.Flags().IntVar(&moveZ, "z", 0, "z position to move to")
	moveCmd.Flags().IntVar(&moveTilt, "tilt", 0, "x tilt position to move to")
	rootCmd.AddCommand(moveCmd)
}
