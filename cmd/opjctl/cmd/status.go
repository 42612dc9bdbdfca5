package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server health and databases",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	var health struct {
		Status          string `json:"status"`
		OpTime          int64  `json:"op_time"`
		CommittedOpTime int64  `json:"committed_op_time"`
	}
	if err := doJSON("GET", GetServerURL()+"/health", nil, &health); err != nil {
		return err
	}

	var dbs struct {
		Databases []string `json:"databases"`
		Count     int      `json:"count"`
	}
	if err := doJSON("GET", GetServerURL()+"/dbs", nil, &dbs); err != nil {
		return err
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(map[string]interface{}{
			"health":    health,
			"databases": dbs.Databases,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Server:            %s\n", GetServerURL())
	fmt.Printf("Status:            %s\n", health.Status)
	fmt.Printf("OpTime:            %d\n", health.OpTime)
	fmt.Printf("Committed OpTime:  %d\n", health.CommittedOpTime)
	fmt.Printf("Databases:         %d\n", dbs.Count)
	for _, name := range dbs.Databases {
		fmt.Printf("  - %s\n", name)
	}
	return nil
}
