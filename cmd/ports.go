package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the serial ports on this system",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ports, err := enumerator.GetDetailedPortsList()
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to list serial ports: %w", err))
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found.")
			return
		}
		for _, port := range ports {
			if port.IsUSB {
				fmt.Printf("%s\tUSB VID=%s PID=%s %s\n", port.Name, port.VID, port.PID, port.Product)
			} else {
				fmt.Println(port.Name)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
