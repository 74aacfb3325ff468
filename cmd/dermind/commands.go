package main

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dermind/dermind/internal/checkin"
	"github.com/dermind/dermind/internal/config"
	"github.com/dermind/dermind/internal/form"
	"github.com/dermind/dermind/internal/onboarding"
	"github.com/dermind/dermind/internal/settings"
)

type insightView struct {
	Score       int    `json:"score"`
	Band        string `json:"band"`
	PatternHint string `json:"patternHint"`
	Tip         string `json:"tip"`
}

type recordView struct {
	ID        string `json:"id"`
	Seq       int64  `json:"seq"`
	Date      string `json:"date"`
	CreatedAt string `json:"createdAt"`
	Entry     struct {
		ItchLevel    *int     `json:"itchLevel"`
		FoodTriggers []string `json:"foodTriggers"`
	} `json:"entry"`
}

type draftView struct {
	Draft struct {
		ID             string   `json:"id"`
		CompletedSteps []string `json:"completedSteps"`
		ExpiresAt      string   `json:"expiresAt"`
	} `json:"draft"`
	Next    string `json:"next"`
	Resumed bool   `json:"resumed"`
}

// submitFields turns repeated --field key=value flags into a typed body
// using the step's schema.
func submitFields(schema form.Schema, pairs []string) (map[string]any, error) {
	raw, err := form.ParsePairs(pairs)
	if err != nil {
		return nil, err
	}
	return form.Coerce(schema, raw)
}

func printSchema(s form.Schema) {
	fmt.Println(colorize(colorBold, s.Title))
	for _, f := range s.Fields {
		req := ""
		if f.Required {
			req = " (required)"
		}
		switch f.Kind {
		case form.KindRange:
			fmt.Printf("  %s  %s [%d-%d]%s\n", colorize(colorCyan, f.Name), f.Label, f.Min, f.Max, req)
		case form.KindChoice, form.KindMulti:
			fmt.Printf("  %s  %s {%s}%s\n", colorize(colorCyan, f.Name), f.Label, strings.Join(f.Options, " | "), req)
		default:
			fmt.Printf("  %s  %s (%s)%s\n", colorize(colorCyan, f.Name), f.Label, f.Kind, req)
		}
	}
}

func printInsight(in insightView) {
	fmt.Printf("%s %d/10 (%s risk)\n", colorize(colorBold, "Flare score:"), in.Score, in.Band)
	fmt.Printf("  %s\n", in.PatternHint)
	fmt.Printf("  %s %s\n", colorize(colorBold, "Tip:"), in.Tip)
}

// --- onboard ---

var onboardCmd = &cobra.Command{
	Use:   "onboard [step]",
	Short: "Show or answer the onboarding flow",
	Long: `Show or answer the onboarding flow.

Examples:
  dermind onboard
  dermind onboard intro --field displayName=Sana --field triggers=Sun,Stress
  dermind onboard user_type --field userType=adult
  dermind onboard conditions --field conditions=Eczema,Acne
  dermind onboard --restart`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		restart, _ := cmd.Flags().GetBool("restart")
		pairs, _ := cmd.Flags().GetStringArray("field")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if restart {
			resp, err := client.delete(ctx, "/onboarding")
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, nil); err != nil {
				return err
			}
			printSuccess("Onboarding restarted")
			return nil
		}

		var resp *http.Response
		if len(args) == 0 {
			resp, err = client.get(ctx, "/onboarding")
		} else {
			step, perr := onboarding.ParseStep(args[0])
			if perr != nil {
				return perr
			}
			schema, _ := onboarding.Schema(step)
			fields, ferr := submitFields(schema, pairs)
			if ferr != nil {
				return ferr
			}
			resp, err = client.post(ctx, "/onboarding/"+string(step), fields)
		}
		if err != nil {
			return err
		}

		var view struct {
			State struct {
				Step      string   `json:"step"`
				Completed []string `json:"completed"`
			} `json:"state"`
			Schema *form.Schema `json:"schema"`
		}
		if err := decodeJSON(resp, &view); err != nil {
			return err
		}

		if view.State.Step == string(onboarding.StepSummary) {
			printSuccess("Onboarding complete")
			return nil
		}
		printStep("Next step: %s", view.State.Step)
		if view.Schema != nil {
			printSchema(*view.Schema)
		}
		return nil
	},
}

func init() {
	onboardCmd.Flags().StringArray("field", nil, "field value as key=value (repeatable)")
	onboardCmd.Flags().Bool("restart", false, "discard onboarding progress and start over")
}

// --- checkin ---

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Log today's skin check-in",
}

var checkinStepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the check-in steps and their fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		for i, s := range checkin.Schemas() {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("%s ", colorize(colorCyan, s.Step))
			printSchema(s)
		}
		return nil
	},
}

var checkinStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start or resume a check-in",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/checkin/start", nil)
		if err != nil {
			return err
		}
		var d draftView
		if err := decodeJSON(resp, &d); err != nil {
			return err
		}
		if d.Resumed {
			printSuccess("Resumed check-in %s", d.Draft.ID)
		} else {
			printSuccess("Started check-in %s", d.Draft.ID)
		}
		printStep("Next step: %s", d.Next)
		return nil
	},
}

var checkinShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the check-in in progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/checkin/draft")
		if err != nil {
			return err
		}
		var d draftView
		if err := decodeJSON(resp, &d); err != nil {
			return err
		}
		printStatus("Draft", "%s", d.Draft.ID)
		printStatus("Completed", "%s", strings.Join(d.Draft.CompletedSteps, ", "))
		printStatus("Next", "%s", d.Next)
		printStatus("Expires", "%s", d.Draft.ExpiresAt)
		return nil
	},
}

var checkinStepCmd = &cobra.Command{
	Use:   "step <step>",
	Short: "Submit one step of the check-in",
	Long: `Submit one step of the check-in. The emotion step saves the log.

Examples:
  dermind checkin step status --field itchLevel=6 --field flareToday=yes
  dermind checkin step triggers --field foodTriggers=Dairy --field foodTriggers=Gluten`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		step, err := checkin.ParseStep(args[0])
		if err != nil {
			return err
		}
		schema, _ := checkin.Schema(step)
		pairs, _ := cmd.Flags().GetStringArray("field")
		fields, err := submitFields(schema, pairs)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/checkin/"+string(step), fields)
		if err != nil {
			return err
		}

		var res struct {
			Next    string       `json:"next"`
			Record  *recordView  `json:"record"`
			Insight *insightView `json:"insight"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		if res.Record == nil {
			printSuccess("Saved %s", step)
			printStep("Next step: %s", res.Next)
			return nil
		}
		printSuccess("Log saved for %s", res.Record.Date)
		if res.Insight != nil {
			printInsight(*res.Insight)
		}
		return nil
	},
}

var checkinAbandonCmd = &cobra.Command{
	Use:   "abandon",
	Short: "Discard the check-in in progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/checkin/draft")
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Check-in discarded")
		return nil
	},
}

func init() {
	checkinStepCmd.Flags().StringArray("field", nil, "field value as key=value (repeatable)")
	checkinCmd.AddCommand(checkinStepsCmd)
	checkinCmd.AddCommand(checkinStartCmd)
	checkinCmd.AddCommand(checkinShowCmd)
	checkinCmd.AddCommand(checkinStepCmd)
	checkinCmd.AddCommand(checkinAbandonCmd)
}

// --- history ---

func historyPath(window, trigger string, limit int) string {
	q := url.Values{}
	if window != "" {
		q.Set("window", window)
	}
	if trigger != "" {
		q.Set("trigger", trigger)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if len(q) == 0 {
		return "/history"
	}
	return "/history?" + q.Encode()
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List logged check-ins, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		window, _ := cmd.Flags().GetString("window")
		trigger, _ := cmd.Flags().GetString("trigger")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), historyPath(window, trigger, limit))
		if err != nil {
			return err
		}

		var view struct {
			Items []struct {
				Index  int        `json:"index"`
				Record recordView `json:"record"`
			} `json:"items"`
			Stats struct {
				Count           int     `json:"count"`
				AverageItch     float64 `json:"averageItch"`
				TopTrigger      string  `json:"topTrigger"`
				TopTriggerCount int     `json:"topTriggerCount"`
			} `json:"stats"`
		}
		if err := decodeJSON(resp, &view); err != nil {
			return err
		}

		if len(view.Items) == 0 {
			fmt.Println("No logs found.")
			return nil
		}
		for _, it := range view.Items {
			itch := "-"
			if it.Record.Entry.ItchLevel != nil {
				itch = fmt.Sprintf("%d", *it.Record.Entry.ItchLevel)
			}
			fmt.Printf("%s  %s  itch %s  %s\n",
				colorize(colorCyan, fmt.Sprintf("[%d]", it.Index)),
				it.Record.Date,
				itch,
				strings.Join(it.Record.Entry.FoodTriggers, ", "),
			)
		}
		fmt.Println()
		printStatus("Logs", "%d", view.Stats.Count)
		printStatus("Average itch", "%.1f", view.Stats.AverageItch)
		if view.Stats.TopTrigger != "" {
			printStatus("Top trigger", "%s (%d)", view.Stats.TopTrigger, view.Stats.TopTriggerCount)
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <index>",
	Short: "Delete a log by its position in the unfiltered list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/history/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var res struct {
			Record recordView `json:"record"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		printSuccess("Deleted log from %s", res.Record.Date)
		return nil
	},
}

func init() {
	historyCmd.Flags().String("window", "", "all (default) or 7d")
	historyCmd.Flags().String("trigger", "", "only logs that include this food trigger")
	historyCmd.Flags().Int("limit", 0, "maximum number of logs to list")
	historyCmd.AddCommand(historyDeleteCmd)
}

// --- insights ---

type latestView struct {
	Record  recordView    `json:"record"`
	Lines   []labeledLine `json:"lines"`
	Insight insightView   `json:"insight"`
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show the summary and insight for the latest log",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/insights/latest")
		if err != nil {
			return err
		}
		var latest latestView
		if err := decodeJSON(resp, &latest); err != nil {
			return err
		}
		fmt.Println(colorize(colorBold, "Log for "+latest.Record.Date))
		printLines(latest.Lines)
		fmt.Println()
		printInsight(latest.Insight)
		return nil
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the home screen",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/dashboard")
		if err != nil {
			return err
		}
		var dash struct {
			Greeting    string      `json:"greeting"`
			Latest      *latestView `json:"latest"`
			LogCount    int         `json:"logCount"`
			Environment *struct {
				UV     string `json:"uv"`
				Pollen string `json:"pollen"`
			} `json:"environment"`
		}
		if err := decodeJSON(resp, &dash); err != nil {
			return err
		}

		fmt.Println(colorize(colorBold, dash.Greeting))
		if dash.Environment != nil {
			printStatus("UV index", "%s", dash.Environment.UV)
			printStatus("Pollen", "%s", dash.Environment.Pollen)
		}
		printStatus("Logs", "%d", dash.LogCount)
		if dash.Latest == nil {
			fmt.Println("No check-ins logged yet.")
			return nil
		}
		fmt.Println()
		printInsight(dash.Latest.Insight)
		return nil
	},
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the baseline profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/profile")
		if err != nil {
			return err
		}
		var profile any
		if err := decodeJSON(resp, &profile); err != nil {
			return err
		}
		return printJSON(profile)
	},
}

var profileSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the profile summary card",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/profile/summary")
		if err != nil {
			return err
		}
		var lines []labeledLine
		if err := decodeJSON(resp, &lines); err != nil {
			return err
		}
		printLines(lines)
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSummaryCmd)
}

// --- settings ---

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Change your name or reset data",
}

var settingsNameCmd = &cobra.Command{
	Use:   "name <name>",
	Short: "Change the display name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.patch(cmd.Context(), "/profile", map[string]string{
			"displayName": strings.Join(args, " "),
		})
		if err != nil {
			return err
		}
		var res map[string]string
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		printSuccess("%s", res["message"])
		return nil
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset <onboarding|all>",
	Short: "Clear onboarding answers or wipe all data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := settings.ParseResetKind(args[0])
		if err != nil {
			return err
		}
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("%s Use --confirm to proceed.", settings.ConfirmationText(kind))
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), resetPath(kind), nil)
		if err != nil {
			return err
		}
		var res map[string]string
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		printSuccess("%s", res["message"])
		return nil
	},
}

func resetPath(kind settings.ResetKind) string {
	q := url.Values{"kind": {string(kind)}, "confirm": {"true"}}
	return "/settings/reset?" + q.Encode()
}

func init() {
	settingsResetCmd.Flags().Bool("confirm", false, "confirm the reset")
	settingsCmd.AddCommand(settingsNameCmd)
	settingsCmd.AddCommand(settingsResetCmd)
}

// --- env ---

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show today's UV index and pollen",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/environment")
		if err != nil {
			return err
		}
		var snap struct {
			UV     string `json:"uv"`
			Pollen string `json:"pollen"`
		}
		if err := decodeJSON(resp, &snap); err != nil {
			return err
		}
		printStatus("UV index", "%s", snap.UV)
		printStatus("Pollen", "%s", snap.Pollen)
		return nil
	},
}

var envGeocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Resolve coordinates to a city name",
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		q := url.Values{
			"lat": {fmt.Sprintf("%g", lat)},
			"lon": {fmt.Sprintf("%g", lon)},
		}
		resp, err := client.get(cmd.Context(), "/environment/geocode?"+q.Encode())
		if err != nil {
			return err
		}
		var res map[string]string
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		fmt.Println(res["location"])
		return nil
	},
}

func init() {
	envGeocodeCmd.Flags().Float64("lat", 0, "latitude")
	envGeocodeCmd.Flags().Float64("lon", 0, "longitude")
	envGeocodeCmd.MarkFlagRequired("lat")
	envGeocodeCmd.MarkFlagRequired("lon")
	envCmd.AddCommand(envGeocodeCmd)
}

// --- photo ---

var photoCmd = &cobra.Command{
	Use:   "photo",
	Short: "Manage the baseline skin photo",
}

// imageDataURL encodes an image file as a data URL.
func imageDataURL(data []byte) (string, error) {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("not an image (detected %s)", mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

var photoSetCmd = &cobra.Command{
	Use:   "set <file>",
	Short: "Save an image as the baseline photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		dataURL, err := imageDataURL(data)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/photo", map[string]string{"dataUrl": dataURL})
		if err != nil {
			return err
		}
		var res struct {
			Ref string `json:"ref"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		printSuccess("Baseline photo saved (%s)", res.Ref)
		return nil
	},
}

var photoShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the baseline photo reference",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/photo")
		if err != nil {
			return err
		}
		var p struct {
			DataURL   string `json:"dataUrl"`
			Ref       string `json:"ref"`
			UpdatedAt string `json:"updatedAt"`
		}
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		printStatus("Ref", "%s", p.Ref)
		printStatus("Updated", "%s", p.UpdatedAt)
		if output == "" {
			return nil
		}
		return writeDataURL(output, p.DataURL)
	},
}

func writeDataURL(path, dataURL string) error {
	_, payload, ok := strings.Cut(dataURL, ";base64,")
	if !ok {
		return fmt.Errorf("photo is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("decoding photo: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	printSuccess("Photo written to %s", path)
	return nil
}

var photoClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the baseline photo",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/photo")
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Baseline photo removed")
		return nil
	},
}

func init() {
	photoShowCmd.Flags().String("output", "", "write the image to this file")
	photoCmd.AddCommand(photoSetCmd)
	photoCmd.AddCommand(photoShowCmd)
	photoCmd.AddCommand(photoClearCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

