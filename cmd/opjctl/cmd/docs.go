package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	writeConcern string
	readConcern  string
	docFile      string
)

// docsCmd represents the docs command
var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Store and fetch documents",
	Long:  `Commands for putting, getting, listing and deleting documents on a journeyd server.`,
}

var docsPutCmd = &cobra.Command{
	Use:   "put <db> <key> [json]",
	Short: "Store a document",
	Long:  `Store a JSON document under the given database and key. The document is read from the argument, from --file, or from stdin.`,
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runDocsPut,
}

var docsGetCmd = &cobra.Command{
	Use:   "get <db> <key>",
	Short: "Fetch a document",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocsGet,
}

var docsListCmd = &cobra.Command{
	Use:   "list <db>",
	Short: "List all documents in a database",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsList,
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <db> <key>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocsDelete,
}

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.AddCommand(docsPutCmd)
	docsCmd.AddCommand(docsGetCmd)
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsDeleteCmd)

	docsPutCmd.Flags().StringVar(&writeConcern, "write-concern", "local", "write concern: local or majority")
	docsPutCmd.Flags().StringVar(&docFile, "file", "", "read the document from a file instead of the argument")
	docsGetCmd.Flags().StringVar(&readConcern, "read-concern", "local", "read concern: local or majority")
	docsListCmd.Flags().StringVar(&readConcern, "read-concern", "local", "read concern: local or majority")
}

type documentResponse struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	OpTime    int64           `json:"op_time"`
	UpdatedAt string          `json:"updated_at"`
}

func docURL(db, key string, query url.Values) string {
	u := fmt.Sprintf("%s/dbs/%s/docs/%s", GetServerURL(), url.PathEscape(db), url.PathEscape(key))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func doJSON(method, url string, body io.Reader, out interface{}) error {
	httpReq, err := CreateAuthenticatedRequest(method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

func runDocsPut(cmd *cobra.Command, args []string) error {
	var payload []byte
	switch {
	case len(args) == 3:
		payload = []byte(args[2])
	case docFile != "":
		data, err := os.ReadFile(docFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", docFile, err)
		}
		payload = data
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		payload = data
	}

	query := url.Values{"writeConcern": {writeConcern}}
	var result documentResponse
	if err := doJSON("PUT", docURL(args[0], args[1], query), strings.NewReader(string(payload)), &result); err != nil {
		return err
	}

	fmt.Printf("Stored %s/%s at optime %d\n", args[0], result.Key, result.OpTime)
	return nil
}

func runDocsGet(cmd *cobra.Command, args []string) error {
	query := url.Values{"readConcern": {readConcern}}
	var result documentResponse
	if err := doJSON("GET", docURL(args[0], args[1], query), nil, &result); err != nil {
		return err
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}
	fmt.Println(string(result.Value))
	return nil
}

func runDocsList(cmd *cobra.Command, args []string) error {
	query := url.Values{"readConcern": {readConcern}}
	listURL := fmt.Sprintf("%s/dbs/%s/docs?%s", GetServerURL(), url.PathEscape(args[0]), query.Encode())

	var result struct {
		Documents []documentResponse `json:"documents"`
		Count     int                `json:"count"`
	}
	if err := doJSON("GET", listURL, nil, &result); err != nil {
		return err
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(result.Documents) == 0 {
		fmt.Println("No documents")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Key", "OpTime", "Updated", "Bytes")
	for _, d := range result.Documents {
		table.Append(d.Key, fmt.Sprintf("%d", d.OpTime), d.UpdatedAt, fmt.Sprintf("%d", len(d.Value)))
	}
	table.Render()
	fmt.Printf("\nTotal documents: %d\n", result.Count)
	return nil
}

func runDocsDelete(cmd *cobra.Command, args []string) error {
	if err := doJSON("DELETE", docURL(args[0], args[1], nil), nil, nil); err != nil {
		return err
	}
	fmt.Printf("Deleted %s/%s\n", args[0], args[1])
	return nil
}
