package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/kilianp07/gcsproxy/core/model"
)

var (
	apiURL   string
	apiToken string
)

var vehiclesCmd = &cobra.Command{
	Use:     "vehicles",
	Aliases: []string{"v"},
	Short:   "Inspect and command vehicles through a running proxy",
}

var vehiclesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List tracked vehicles",
	Args:  cobra.NoArgs,
	RunE:  runVehiclesLs,
}

var vehiclesActionCmd = &cobra.Command{
	Use:   "do <id> <action>",
	Short: "Send an action (launch, home, halt, go, emergency_stop, emergency_kill, shutdown, enable_motors, disable_motors)",
	Args:  cobra.ExactArgs(2),
	RunE:  runVehiclesAction,
}

var vehiclesModeCmd = &cobra.Command{
	Use:   "mode <id> <mode>",
	Short: "Request a mode change",
	Args:  cobra.ExactArgs(2),
	RunE:  runVehiclesMode,
}

func init() {
	vehiclesCmd.PersistentFlags().StringVar(&apiURL, "api", "http://localhost:8080", "proxy API base URL")
	vehiclesCmd.PersistentFlags().StringVar(&apiToken, "token", "", "API bearer token")
	vehiclesCmd.AddCommand(vehiclesLsCmd, vehiclesActionCmd, vehiclesModeCmd)
	rootCmd.AddCommand(vehiclesCmd)
}

func apiRequest(method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, strings.TrimSuffix(apiURL, "/")+path, r)
	if err != nil {
		return nil, err
	}
	if apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+apiToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func runVehiclesLs(cmd *cobra.Command, args []string) error {
	resp, err := apiRequest(http.MethodGet, "/api/vehicles", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var list []model.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("decode vehicles: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), renderVehicles(list, time.Now()))
	return err
}

func renderVehicles(list []model.Snapshot, now time.Time) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 40
	table.AddRow("ID", "NAME", "STATUS", "STATE", "MODE", "BATTERY", "REMAINING", "LAST SEEN", "LINKS")
	for _, s := range list {
		name := s.Name
		if s.Selected {
			name += " *"
		}
		remaining := "-"
		if s.Battery.TimeRemaining != nil {
			remaining = s.Battery.TimeRemaining.Round(time.Second).String()
		}
		lastSeen := "never"
		if !s.LastMessage.IsZero() {
			lastSeen = humanize.RelTime(s.LastMessage, now, "ago", "from now")
		}
		table.AddRow(
			s.ID,
			name,
			s.CommStatus,
			s.StatusState,
			s.Mode,
			fmt.Sprintf("%.1fV %s%%", s.Battery.FilteredVoltage, humanize.FtoaWithDigits(s.Battery.ChargeLevel, 1)),
			remaining,
			lastSeen,
			strings.Join(s.Links, ","),
		)
	}
	return table
}

func runVehiclesAction(cmd *cobra.Command, args []string) error {
	if _, err := strconv.Atoi(args[0]); err != nil {
		return fmt.Errorf("invalid vehicle id %q", args[0])
	}
	resp, err := apiRequest(http.MethodPost, "/api/vehicles/"+args[0]+"/actions/"+args[1], nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s sent to vehicle %s\n", args[1], args[0])
	return err
}

func runVehiclesMode(cmd *cobra.Command, args []string) error {
	if _, err := strconv.Atoi(args[0]); err != nil {
		return fmt.Errorf("invalid vehicle id %q", args[0])
	}
	mode, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid mode %q", args[1])
	}
	resp, err := apiRequest(http.MethodPost, "/api/vehicles/"+args[0]+"/mode", map[string]int{"mode": mode})
	if err != nil {
		return err
	}
	resp.Body.Close()
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "mode %d requested for vehicle %s\n", mode, args[0])
	return err
}
