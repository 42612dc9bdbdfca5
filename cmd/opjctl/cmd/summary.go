package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opjourney/opjourney/pkg/journey"
)

// summaryCmd represents the summary command
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the server's per-stage operation timing",
	Long:  `Fetch the aggregated operation journey from the server and display how much time operations spend in each processing stage.`,
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

type stageTiming struct {
	Min string `json:"min" yaml:"min"`
	Max string `json:"max" yaml:"max"`
	Avg string `json:"avg" yaml:"avg"`
}

type journeySummary struct {
	Stages     []stageEntry `json:"stages" yaml:"stages"`
	Operations int64        `json:"operations" yaml:"operations"`
	Stable     bool         `json:"stable" yaml:"stable"`
}

type stageEntry struct {
	Stage  string      `json:"stage" yaml:"stage"`
	Timing stageTiming `json:"timing" yaml:"timing"`
}

func fetchSummary() (*journeySummary, error) {
	url := fmt.Sprintf("%s/diagnostics/journey", GetServerURL())

	httpReq, err := CreateAuthenticatedRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var raw struct {
		Operations int64 `json:"operations"`
		Stable     bool  `json:"stable"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	var byStage map[string]json.RawMessage
	if err := json.Unmarshal(body, &byStage); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	summary := &journeySummary{
		Operations: raw.Operations,
		Stable:     raw.Stable,
	}
	// Stages come back keyed by name; walk them in pipeline order, plus
	// the synthesized "other" bucket.
	names := make([]string, 0, int(journey.StageDestroyed)+1)
	for s := journey.StageRunning; s < journey.StageDestroyed; s++ {
		names = append(names, s.String())
	}
	names = append(names, "other")
	for _, name := range names {
		rawTiming, ok := byStage[name]
		if !ok {
			continue
		}
		var timing stageTiming
		if err := json.Unmarshal(rawTiming, &timing); err != nil {
			continue
		}
		summary.Stages = append(summary.Stages, stageEntry{Stage: name, Timing: timing})
	}
	return summary, nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	summary, err := fetchSummary()
	if err != nil {
		return err
	}
	return renderSummary(summary)
}

func renderSummary(summary *journeySummary) error {
	switch {
	case IsJSONOutput():
		output, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))

	case IsYAMLOutput():
		output, err := yaml.Marshal(summary)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		fmt.Print(string(output))

	default:
		if len(summary.Stages) == 0 {
			fmt.Println("No operations recorded yet")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Stage", "Min", "Max", "Avg")
		for _, entry := range summary.Stages {
			table.Append(entry.Stage, entry.Timing.Min, entry.Timing.Max, entry.Timing.Avg)
		}
		table.Render()
		fmt.Printf("\nOperations: %d", summary.Operations)
		if !summary.Stable {
			fmt.Printf(" (snapshot raced in-flight captures)")
		}
		fmt.Println()
	}

	return nil
}
