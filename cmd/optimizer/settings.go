package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/opscart/k8s-workload-optimizer/pkg/models"
	"github.com/opscart/k8s-workload-optimizer/pkg/scanner"
	"github.com/opscart/k8s-workload-optimizer/pkg/scoring"
	"github.com/opscart/k8s-workload-optimizer/pkg/storage"
	"github.com/opscart/k8s-workload-optimizer/pkg/strategy"
)

var (
	// Settings command vars
	prefPairs   []string
	disabled    bool
	skipVerify  bool
	enabledOnly bool

	// Index command vars
	reconcileIndex bool
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage per-workload optimization settings",
	}

	setCmd := &cobra.Command{
		Use:   "set <namespace> <deployment>",
		Short: "Score preferences and store them for a workload",
		Example: `  workload-optimizer settings set shop cart \
    --pref priority=cost --pref trafficPattern=steady \
    --pref criticality=standard --pref budget=strict`,
		Args: cobra.ExactArgs(2),
		RunE: runSettingsSet,
	}
	setCmd.Flags().StringArrayVarP(&prefPairs, "pref", "p", nil, "Preference as category=selection (repeatable)")
	setCmd.Flags().BoolVar(&disabled, "disabled", false, "Store the settings without enabling optimization")
	setCmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "Do not check that the deployment exists")
	_ = setCmd.MarkFlagRequired("pref")

	getCmd := &cobra.Command{
		Use:   "get <namespace> <deployment>",
		Short: "Show the stored settings of a workload",
		Args:  cobra.ExactArgs(2),
		RunE:  runSettingsGet,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <namespace> <deployment>",
		Short: "Remove a workload's settings and its index entry",
		Args:  cobra.ExactArgs(2),
		RunE:  runSettingsDelete,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored settings",
		Args:  cobra.NoArgs,
		RunE:  runSettingsList,
	}
	listCmd.Flags().BoolVar(&enabledOnly, "enabled", false, "Only workloads the next pass will process")

	optionsCmd := &cobra.Command{
		Use:   "options",
		Short: "List scoring categories and their selections",
		Args:  cobra.NoArgs,
		RunE:  runSettingsOptions,
	}

	cmd.AddCommand(setCmd, getCmd, deleteCmd, listCmd, optionsCmd)
	return cmd
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Dump the raw enabled-workload index",
		Args:  cobra.NoArgs,
		RunE:  runIndex,
	}
	cmd.Flags().BoolVar(&reconcileIndex, "reconcile", false, "Prune stale members and add missing ones")
	return cmd
}

func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover <namespace>",
		Short: "List deployments in a namespace with their optimization state",
		Args:  cobra.ExactArgs(1),
		RunE:  runDiscover,
	}
}

func identityFromArgs(args []string) (models.WorkloadIdentity, error) {
	id := models.NewWorkloadIdentity(args[0], args[1])
	if err := id.Validate(); err != nil {
		return id, err
	}
	return id, nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	id, err := identityFromArgs(args)
	if err != nil {
		return err
	}

	prefs, err := scoring.ParsePreferences(prefPairs)
	if err != nil {
		return err
	}
	score, err := scoring.NewEngine().Score(prefs)
	if err != nil {
		return fmt.Errorf("invalid preferences: %w", err)
	}

	if !skipVerify {
		clientset, err := scanner.NewClientset(cfg.Kubeconfig)
		if err != nil {
			return err
		}
		if err := scanner.New(clientset).DeploymentExists(cmd.Context(), id); err != nil {
			return fmt.Errorf("%w (use --skip-verify to store anyway)", err)
		}
	}

	store, err := initStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	settings, err := store.Upsert(cmd.Context(), id, prefs, score, !disabled)
	if err != nil {
		var se *storage.StoreError
		if errors.As(err, &se) && se.Stage == storage.StageIndex {
			fmt.Fprintf(os.Stderr, "[WARN] Settings saved but the index update failed; run 'index --reconcile'\n")
		}
		return err
	}

	fmt.Printf("[INFO] Saved settings for %s\n", id)
	fmt.Printf("[INFO] Score: %.1f (%s strategy)\n", settings.Score, strategy.Classify(settings.Score))
	if !settings.Enabled {
		fmt.Println("[INFO] Optimization is disabled for this workload")
	}
	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	id, err := identityFromArgs(args)
	if err != nil {
		return err
	}

	store, err := initStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	settings, err := store.Get(cmd.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no settings stored for %s", id)
	}
	if err != nil {
		return err
	}
	return printSettings([]*models.OptimizationSettings{settings})
}

func runSettingsDelete(cmd *cobra.Command, args []string) error {
	id, err := identityFromArgs(args)
	if err != nil {
		return err
	}

	store, err := initStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no settings stored for %s", id)
		}
		return err
	}
	fmt.Printf("[INFO] Deleted settings for %s\n", id)
	return nil
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	store, err := initStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	var all []*models.OptimizationSettings
	if enabledOnly {
		workloads, err := store.ListEnabledWorkloads(cmd.Context())
		if err != nil {
			return err
		}
		for _, w := range workloads {
			all = append(all, w.Settings)
		}
	} else {
		all, err = store.ListAll(cmd.Context())
		if err != nil {
			return err
		}
	}
	return printSettings(all)
}

func runSettingsOptions(cmd *cobra.Command, args []string) error {
	return writeOptions(os.Stdout, scoring.NewEngine())
}

// writeOptions prints the scoring choices followed by what each band does
func writeOptions(w io.Writer, engine *scoring.Engine) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tSELECTIONS")
	for _, c := range engine.Categories() {
		fmt.Fprintf(tw, "%s\t%s\n", c, strings.Join(engine.Options(models.Category(c)), ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BAND\tSCORES\tPOLICY")
	for _, b := range strategy.Bands() {
		low, high, _ := strategy.ScoreRange(b)
		fmt.Fprintf(tw, "%s\t%.1f-%.1f\t%s\n", b, low, high, strategy.GetPolicy(b).Description)
	}
	return tw.Flush()
}

func printSettings(all []*models.OptimizationSettings) error {
	switch cfg.OutputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	case "yaml":
		data, err := yaml.Marshal(all)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	if len(all) == 0 {
		fmt.Println("No settings stored")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKLOAD\tSCORE\tBAND\tENABLED\tPREFERENCES\tUPDATED")
	for _, s := range all {
		fmt.Fprintf(tw, "%s\t%.1f\t%s\t%t\t%s\t%s\n",
			s.Identity,
			s.Score,
			strategy.Classify(s.Score),
			s.Enabled,
			formatPreferences(s.Preferences),
			s.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	return tw.Flush()
}

func formatPreferences(prefs models.Preferences) string {
	pairs := make([]string, 0, len(prefs))
	for c, s := range prefs {
		pairs = append(pairs, fmt.Sprintf("%s=%s", c, s))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func runIndex(cmd *cobra.Command, args []string) error {
	store, err := initStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	if reconcileIndex {
		result, err := store.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("[INFO] Reconciled index: %d removed, %d added\n", result.Removed, result.Added)
	}

	members, err := store.IndexMembers(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("[INFO] %s has %d members\n", storage.GlobalIndexKey, len(members))
	for _, id := range members {
		fmt.Printf("  %s\n", id.Key())
	}
	return nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	namespace := args[0]

	clientset, err := scanner.NewClientset(cfg.Kubeconfig)
	if err != nil {
		return err
	}
	scan := scanner.New(clientset)
	if version, err := scan.ServerVersion(); err == nil {
		fmt.Printf("[INFO] Connected to cluster (version: %s)\n", version)
	}

	deployments, err := scan.ListDeployments(cmd.Context(), namespace)
	if err != nil {
		return err
	}

	store, err := initStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEPLOYMENT\tREPLICAS\tREADY\tSCORE\tSTRATEGY\tSTATE")
	for _, d := range deployments {
		score, band, state := "-", "-", "not configured"
		settings, err := store.Get(cmd.Context(), d.Identity)
		switch {
		case err == nil:
			score = fmt.Sprintf("%.1f", settings.Score)
			band = strategy.Classify(settings.Score).String()
			state = "disabled"
			if settings.Enabled {
				state = "enabled"
			}
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n", d.Identity.Deployment, d.Replicas, d.ReadyReplicas, score, band, state)
	}
	return tw.Flush()
}
