// reisctl is a small terminal client for a running reiswijzer server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/reiswijzer/reiswijzer-go/internal/models"
)

var (
	serverURL string

	httpClient = &http.Client{Timeout: 30 * time.Second}
)

func main() {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}

	root := &cobra.Command{
		Use:   "reisctl",
		Short: "Query a reiswijzer server from the terminal",
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "reiswijzer server base URL")

	root.AddCommand(stationsCmd(), reisCmd(), ovCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func stationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stations <query>",
		Short: "Search stations by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var stations []struct {
				Code  string            `json:"code"`
				Namen map[string]string `json:"namen"`
			}
			if err := getJSON("/stations?q="+url.QueryEscape(args[0]), &stations); err != nil {
				return err
			}
			for _, s := range stations {
				fmt.Printf("%s  %s\n", color.CyanString("%-6s", s.Code), s.Namen["lang"])
			}
			return nil
		},
	}
}

func reisCmd() *cobra.Command {
	var (
		extreme bool
		arrival bool
		at      string
	)
	cmd := &cobra.Command{
		Use:   "reis <van> <naar>",
		Short: "Search journeys between two station codes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			when := time.Now()
			if at != "" {
				t, err := models.ParseTime(at)
				if err != nil {
					return fmt.Errorf("invalid -at time: %w", err)
				}
				when = t
			}

			endpoint := "/reis"
			if extreme {
				endpoint = "/reis-extreme-b"
			}
			params := url.Values{}
			params.Set("van", args[0])
			params.Set("naar", args[1])
			params.Set("datetime", when.Format(time.RFC3339))
			params.Set("searchForArrival", fmt.Sprintf("%t", arrival))

			var resp struct {
				Options []models.Option `json:"options"`
			}
			if err := getJSON(endpoint+"?"+params.Encode(), &resp); err != nil {
				return err
			}

			for _, opt := range resp.Options {
				label := color.GreenString("direct")
				if opt.Kind == models.KindCombination {
					label = color.YellowString("combi ")
				}
				fmt.Printf("%s  %s → %s  %3d min  %d legs\n",
					label,
					opt.DepartureTime.Format("15:04"),
					opt.ArrivalTime.Format("15:04"),
					opt.DurationMinutes,
					len(opt.Legs))
				for _, leg := range opt.Legs {
					fmt.Printf("        %s %s → %s (%s)\n",
						leg.DepartureTime.Format("15:04"), leg.OriginName, leg.DestName, leg.ProductLabel)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&extreme, "extreme", false, "use the combination search")
	cmd.Flags().BoolVar(&arrival, "arrival", false, "treat the time as arrival time")
	cmd.Flags().StringVar(&at, "at", "", "journey date/time (RFC3339, default now)")
	return cmd
}

func ovCmd() *cobra.Command {
	var after string
	cmd := &cobra.Command{
		Use:   "ov <station>",
		Short: "Show connecting local transit for a stop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			params.Set("station", args[0])
			if after != "" {
				params.Set("after", after)
			}

			var resp struct {
				Station    string                   `json:"station"`
				Departures []models.DepartureRecord `json:"departures"`
				Window     string                   `json:"window"`
			}
			if err := getJSON("/ov/by-station?"+params.Encode(), &resp); err != nil {
				return err
			}

			if resp.Window != "" {
				fmt.Printf("window: %s\n", color.MagentaString(resp.Window))
			}
			for _, d := range resp.Departures {
				fmt.Printf("%s  %-4s %-24s %s\n",
					d.ExpectedTime.Format("15:04"),
					color.CyanString(d.Line),
					d.Destination,
					d.TransportType)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&after, "after", "", "train arrival time (RFC3339) to select a window")
	return cmd
}

func getJSON(path string, out interface{}) error {
	resp, err := httpClient.Get(serverURL + path)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("server: %s", e.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return json.Unmarshal(body, out)
}
