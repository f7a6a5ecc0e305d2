package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ppiankov/peerpanel/internal/model"
	"github.com/ppiankov/peerpanel/internal/pipeline"
	"github.com/ppiankov/peerpanel/internal/router"
	"github.com/ppiankov/peerpanel/internal/tagger"
)

var (
	routeStrategy string
	routeJSON     bool
)

// routeCmd represents the route command
var routeCmd = &cobra.Command{
	Use:   "route <paper.json>",
	Short: "Show which text each reviewer would see",
	Long: `Route runs only the facet router and prints, per facet, the sections
selected and the size of the routed text. No LLM calls are made.

Example:
  peerpanel route paper.json
  peerpanel route paper.json --routing span --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRoute,
}

func init() {
	rootCmd.AddCommand(routeCmd)
	routeCmd.Flags().StringVar(&routeStrategy, "routing", "", "routing strategy (section, span, all)")
	routeCmd.Flags().BoolVar(&routeJSON, "json", false, "print the routing as JSON")
}

func runRoute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if routeStrategy != "" {
		cfg.Routing.Strategy = routeStrategy
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	paper, err := pipeline.LoadPaper(args[0])
	if err != nil {
		return err
	}
	if cfg.Routing.Strategy == model.RoutingSpan && !paper.Tagged() {
		paper = tagger.New(0).Tag(paper)
	}

	r, err := router.New(cfg.Routing, cfg.Review.Facets)
	if err != nil {
		return err
	}
	routing, err := r.Route(paper)
	if err != nil {
		return fmt.Errorf("route: %w", err)
	}

	if routeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(routing)
	}

	fmt.Fprintf(os.Stderr, "Routing %s with %s (budget %d chars)\n\n", paper.ID, r.Name(), cfg.Routing.MaxChars)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Facet", "Sections", "Chars", "Truncated"})
	table.SetAutoWrapText(false)
	for _, route := range routing {
		truncated := ""
		if strings.HasSuffix(route.Text, router.TruncationMarker) {
			truncated = "yes"
		}
		table.Append([]string{
			string(route.Facet),
			strings.Join(route.Sections, ", "),
			strconv.Itoa(utf8.RuneCountInString(route.Text)),
			truncated,
		})
	}
	table.Render()

	routed := routing.Map()
	for _, f := range cfg.Review.Facets {
		if _, ok := routed[f]; !ok {
			fmt.Fprintf(os.Stderr, "  %s: no matching text, reviewer skipped\n", f)
		}
	}
	return nil
}
