package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var watchInterval time.Duration

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously display the server's stage timing",
	Long: `Poll the journey summary at a fixed interval and redraw it, for
keeping an eye on stage timing while load is applied to the server.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "Polling interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	draw := func() {
		summary, err := fetchSummary()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		if !IsJSONOutput() && !IsYAMLOutput() {
			// Clear screen between redraws for table output.
			fmt.Print("\033[H\033[2J")
			fmt.Printf("journeyd %s (every %s)\n\n", GetServerURL(), watchInterval)
		}
		if err := renderSummary(summary); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	draw()
	for {
		select {
		case <-ticker.C:
			draw()
		case <-sigChan:
			fmt.Println("\nStopped")
			return nil
		}
	}
}
