package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abchbx/nutrition-agent/internal/config"
	"github.com/abchbx/nutrition-agent/internal/foodtable"
	"github.com/abchbx/nutrition-agent/internal/memory"
	"github.com/abchbx/nutrition-agent/internal/semantic"
)

func profilePath(suffix string) string {
	return "/v1/profiles/" + url.PathEscape(userID) + suffix
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Ask the nutrition assistant",
	Long: `Ask the nutrition assistant. The answer takes the user's profile and
recent consultations into account and is stored as a consultation.

Examples:
  nutrition ask "苹果的热量是多少？"
  nutrition -u alice ask "帮我规划一份400千卡的早餐"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/v1/chat", map[string]string{
			"user_id": userID,
			"message": strings.Join(args, " "),
		})
		if err != nil {
			return err
		}
		var out struct {
			Answer string `json:"answer"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.Answer)
		return nil
	},
}

// --- food ---

var foodCmd = &cobra.Command{
	Use:   "food <name>",
	Short: "Look up the nutrients of a food",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		detailed, _ := cmd.Flags().GetBool("detailed")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path := "/v1/foods/" + url.PathEscape(strings.Join(args, " "))
		if detailed {
			path += "?detailed=true"
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		// A miss is a 404 that still carries the rendered outcome.
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
			return statusError(resp)
		}
		var out map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), out)
		}
		text, _ := out["text"].(string)
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	foodCmd.Flags().Bool("detailed", false, "include fiber, vitamin C, calcium and iron")
	foodCmd.Flags().Bool("json", false, "print the raw lookup outcome")
}

// --- category ---

var categoryCmd = &cobra.Command{
	Use:   "category [name]",
	Short: "List food categories, or the foods of one category",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()

		if len(args) == 0 {
			resp, err := client.get(cmd.Context(), "/v1/categories")
			if err != nil {
				return err
			}
			var out struct {
				Categories []string `json:"categories"`
			}
			if err := decodeJSON(resp, &out); err != nil {
				return err
			}
			for _, c := range out.Categories {
				fmt.Fprintln(w, c)
			}
			return nil
		}

		resp, err := client.get(cmd.Context(), "/v1/categories/"+url.PathEscape(args[0])+"/foods")
		if err != nil {
			return err
		}
		var foods []foodtable.Record
		if err := decodeJSON(resp, &foods); err != nil {
			return err
		}
		for _, f := range foods {
			fmt.Fprintf(w, "%s  %s千卡 | 蛋白质 %sg | 碳水 %sg | 脂肪 %sg (每100g)\n",
				colorize(colorBold, f.Name), num(f.Calories), num(f.Protein), num(f.Carbs), num(f.Fat))
		}
		return nil
	},
}

func num(v float64) string {
	return fmt.Sprintf("%g", v)
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or change the user profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), profilePath(""))
		if err != nil {
			return err
		}
		var p memory.Profile
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), p)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <key> <value> [<key> <value>...]",
	Short: "Set profile fields, creating the profile if needed",
	Long: "Set profile fields, creating the profile if needed.\n\nKeys: " + strings.Join(memory.PatchKeys, ", "),
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 || len(args)%2 != 0 {
			return fmt.Errorf("expected key/value pairs, got %d arguments", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		fields := make(map[string]any, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			fields[args[i]] = args[i+1]
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), profilePath(""), fields)
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		for i := 0; i < len(args); i += 2 {
			printSuccess("Set %s = %s", args[i], args[i+1])
		}
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
}

// --- log ---

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Record or list eaten food",
}

var logAddCmd = &cobra.Command{
	Use:   "add <description>",
	Short: "Record food, e.g. \"200g 鸡胸肉\" or \"一杯牛奶\"",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), profilePath("/logs"), map[string]string{
			"description": strings.Join(args, " "),
			"date":        date,
		})
		if err != nil {
			return err
		}
		var out struct {
			Confirmation string `json:"confirmation"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.Confirmation)
		return nil
	},
}

var logListCmd = &cobra.Command{
	Use:   "list",
	Short: "List logged food for a date range (default today)",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")

		q := url.Values{}
		if start != "" {
			q.Set("start", start)
		}
		if end != "" {
			q.Set("end", end)
		}
		path := profilePath("/logs")
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var logs []memory.DailyLog
		if err := decodeJSON(resp, &logs); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(logs) == 0 {
			fmt.Fprintln(w, "No food logged.")
			return nil
		}
		for _, l := range logs {
			cal, protein, carbs, fat := l.Totals()
			fmt.Fprintf(w, "%s  %.1f kcal | 蛋白质 %.1fg | 碳水 %.1fg | 脂肪 %.1fg\n",
				colorize(colorBold, l.Date), cal, protein, carbs, fat)
			for _, e := range l.Entries {
				fmt.Fprintf(w, "  • %g %s %s  %.1f kcal\n", e.Amount, e.Unit, e.FoodName, e.Calories)
			}
		}
		return nil
	},
}

func init() {
	logAddCmd.Flags().String("date", "", "YYYY-MM-DD (default today)")
	logListCmd.Flags().String("start", "", "first date, YYYY-MM-DD (default --end)")
	logListCmd.Flags().String("end", "", "last date, YYYY-MM-DD (default today)")
	logCmd.AddCommand(logAddCmd)
	logCmd.AddCommand(logListCmd)
}

// --- goal ---

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Manage user goals",
}

var goalAddCmd = &cobra.Command{
	Use:   "add <description>",
	Short: "Add an active goal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetFloat64("target")
		unit, _ := cmd.Flags().GetString("unit")
		deadline, _ := cmd.Flags().GetString("deadline")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), profilePath("/goals"), map[string]any{
			"description":  strings.Join(args, " "),
			"target_value": target,
			"unit":         unit,
			"deadline":     deadline,
		})
		if err != nil {
			return err
		}
		var g memory.Goal
		if err := decodeJSON(resp, &g); err != nil {
			return err
		}
		printSuccess("Added goal %s", g.ID)
		return nil
	},
}

var goalStatusCmd = &cobra.Command{
	Use:       "status <goal-id> <active|completed|abandoned>",
	Short:     "Change the status of a goal",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(memory.GoalActive), string(memory.GoalCompleted), string(memory.GoalAbandoned)},
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.patch(cmd.Context(), profilePath("/goals/"+url.PathEscape(args[0])), map[string]string{
			"status": args[1],
		})
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Goal %s is now %s", args[0], args[1])
		return nil
	},
}

func init() {
	goalAddCmd.Flags().Float64("target", 0, "target value")
	goalAddCmd.Flags().String("unit", "", "unit of the target value")
	goalAddCmd.Flags().String("deadline", "", "YYYY-MM-DD")
	goalCmd.AddCommand(goalAddCmd)
	goalCmd.AddCommand(goalStatusCmd)
}

// --- report ---

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize logged intake over the past week or month",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		end, _ := cmd.Flags().GetString("end")

		q := url.Values{"kind": {kind}, "format": {"markdown"}}
		if end != "" {
			q.Set("end", end)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), profilePath("/report?"+q.Encode()))
		if err != nil {
			return err
		}
		text, err := readText(resp)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(text, "\n"))
		return nil
	},
}

func init() {
	reportCmd.Flags().String("kind", "weekly", "weekly or monthly")
	reportCmd.Flags().String("end", "", "last day of the window, YYYY-MM-DD (default today)")
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the semantic food index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-embed the food table and rewrite the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log, os.Stderr)

		table := foodtable.Load(cfg.Storage.FoodTablePath())
		provider := newProvider(cfg.LLM, newEngine(cfg.LLM))

		printStep("Embedding %d foods from %s", table.Len(), cfg.Storage.FoodTablePath())
		ix, err := semantic.Build(cmd.Context(), cfg.Storage.IndexPath(), provider, table.All())
		if err != nil {
			return err
		}
		printSuccess("Indexed %d foods into %s", ix.Len(), cfg.Storage.IndexPath())
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexRebuildCmd)
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
		w := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(w, "  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "$"+k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value in the config file.\n\nKeys: " + strings.Join(config.ValidKeys(), ", "),
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
