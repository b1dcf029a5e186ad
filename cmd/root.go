package cmd

import (
	"fmt"
	"os"

	"dltsctl/config"
	"dltsctl/dlts"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

var verbosity int

var device *dlts.Dlts

var rootCmd = &cobra.Command{
	Use:   "dltsctl",
	Short: "A CLI program which controls a DLTS scan device over a serial port",
	Long:  "The dltsctl tool drives a DLTS laser scanning device: it moves the stages, fires laser pulses and runs area scans which stream point data back over the serial protocol.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
		if err := config.Initialize(); err != nil {
			cobra.CheckErr(fmt.Errorf("failed to load configuration: %w", err))
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if device != nil && device.IsConnected() {
			if err := device.Connection().Close(); err != nil {
				log.Warn().Err(err).Msg("closing connection")
			}
		}
	},
}

func setupLogging() {
	level := zerolog.WarnLevel
	switch {
	case verbosity == 1:
		level = zerolog.InfoLevel
	case verbosity == 2:
		level = zerolog.DebugLevel
	case verbosity >= 3:
		level = zerolog.TraceLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// openDevice connects to the DLTS on the configured port, falling back
// to the first USB serial port found when none is configured.
func openDevice() (*dlts.Dlts, error) {
	if device != nil {
		return device, nil
	}

	portName := config.Port
	if portName == "" {
		var err error
		portName, err = findPort()
		if err != nil {
			return nil, err
		}
	}

	transport, err := dlts.OpenSerial(portName, config.Baud, config.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	log.Info().Str("port", portName).Int("baud", config.Baud).Msg("connected")

	device = dlts.NewDlts(dlts.NewConnection(transport), config.HistorySize)
	return device, nil
}

// findPort returns the first USB serial port on the system.
func findPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("failed to list serial ports: %w", err)
	}
	for _, port := range ports {
		if port.IsUSB {
			return port.Name, nil
		}
	}
	return "", fmt.Errorf("no USB serial port found, set serial.port in the configuration")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")
}
