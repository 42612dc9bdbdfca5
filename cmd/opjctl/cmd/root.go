package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opjourney/opjourney/pkg/auth"
)

var (
	serverURL    string
	outputFormat string
	cfgFile      string
	apiClient    string
	apiKey       string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "opjctl",
	Short: "CLI for journeyd document servers",
	Long:  `opjctl talks to a journeyd server: it stores and fetches documents and inspects the per-stage operation timing that journeyd aggregates.`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.opjctl/config)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "journeyd API URL (default from config or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table, json or yaml")
	rootCmd.PersistentFlags().StringVar(&apiClient, "client", "", "API client name for authenticated servers")
	rootCmd.PersistentFlags().StringVar(&apiKey, "key", "", "API key for authenticated servers")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".opjctl")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	viper.BindEnv("server_url", "OPJCTL_SERVER_URL")
	viper.BindEnv("api_client", "OPJCTL_API_CLIENT")
	viper.BindEnv("api_key", "OPJCTL_API_KEY")

	if err := viper.ReadInConfig(); err == nil {
		if serverURL == "" && viper.GetString("server_url") != "" {
			serverURL = viper.GetString("server_url")
		}
		if apiClient == "" && viper.GetString("api_client") != "" {
			apiClient = viper.GetString("api_client")
		}
		if apiKey == "" && viper.GetString("api_key") != "" {
			apiKey = viper.GetString("api_key")
		}
	}

	if serverURL == "" && viper.GetString("server_url") != "" {
		serverURL = viper.GetString("server_url")
	}
	if apiClient == "" && viper.GetString("api_client") != "" {
		apiClient = viper.GetString("api_client")
	}
	if apiKey == "" && viper.GetString("api_key") != "" {
		apiKey = viper.GetString("api_key")
	}

	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
}

// GetServerURL returns the configured server URL with trailing slashes removed
func GetServerURL() string {
	return strings.TrimRight(serverURL, "/")
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

// IsYAMLOutput returns true if YAML output is requested
func IsYAMLOutput() bool {
	return outputFormat == "yaml"
}

// CreateAuthenticatedRequest creates an HTTP request carrying the API key
// headers when a key is configured
func CreateAuthenticatedRequest(method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}

	if apiKey != "" {
		req.Header.Set(auth.ClientHeader, apiClient)
		req.Header.Set(auth.KeyHeader, apiKey)
	}

	return req, nil
}
