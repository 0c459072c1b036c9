package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cvtabs/internal/facet"
	"github.com/spigell/cvtabs/internal/logger"
	"github.com/spigell/cvtabs/internal/manager"
	"github.com/spigell/cvtabs/internal/search"
	"github.com/spigell/cvtabs/internal/session"
)

const (
	PromptResults  = "Show results"
	PromptFetch    = "Fetch"
	PromptNextPage = "Next page"
	PromptPrevPage = "Previous page"
	PromptPageSize = "Page size"
	PromptQuery    = "Edit query"
	PromptFacet    = "Set facet"
	PromptSort     = "Sort by"
	PromptSwitch   = "Switch tab"
	PromptNew      = "New tab"
	PromptRename   = "Rename tab"
	PromptClose    = "Close tab"
	PromptSave     = "Save tab"
	PromptLoad     = "Open saved tabs"
	PromptExit     = "Exit"
	PromptBack     = "back"
	PromptClear    = "clear"
)

var errExit = errors.New("exit requested")

var actions = []string{
	PromptResults, PromptFetch, PromptNextPage, PromptPrevPage, PromptPageSize,
	PromptQuery, PromptFacet, PromptSort,
	PromptSwitch, PromptNew, PromptRename, PromptClose,
	PromptSave, PromptLoad, PromptExit,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the interactive search tabs",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("load-saved", "l", false, "open all saved tabs on start")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the cvtabs", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	serveMetrics(logger)

	m, err := newManager(config, logger)
	if err != nil {
		logger.Fatal(
			"loading api token",
			zap.Error(err),
			zap.String("hint", "set CVTABS_TOKEN_FILE environment variable or the 'token-file' key in the configuration file"),
		)
	}

	if cmd.Flag("load-saved").Value.String() == "true" {
		ids, err := m.Load(ctx, config.PageSize)
		if err != nil {
			logger.Warn("opening saved tabs", zap.Error(err))
		}
		logger.Info("opened saved tabs", zap.Int("count", len(ids)))
	}

	for {
		view := m.ActiveView()

		prompt := promptui.Select{
			Label: tabsLabel(m.Store().List(), view),
			Items: actions,
			Size:  len(actions),
		}

		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(ctx, action, m, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			if errors.Is(err, promptui.ErrInterrupt) {
				logger.Fatal("exiting", zap.Error(err))
			}
			logger.Warn("action failed", zap.String("action", action), zap.Error(err))
		}
	}
}

func handleAction(ctx context.Context, action string, m *manager.Manager, logger *zap.Logger) error {
	store := m.Store()
	active := store.Active()

	switch action {
	case PromptResults:
		return showResults(ctx, m, logger)
	case PromptFetch:
		return fetch(ctx, m, active.ID, logger)
	case PromptNextPage, PromptPrevPage:
		page := active.Paging.Page + 1
		if action == PromptPrevPage {
			page = active.Paging.Page - 1
		}
		if _, err := store.SetPage(active.ID, page); err != nil {
			return err
		}
		return fetch(ctx, m, active.ID, logger)
	case PromptPageSize:
		raw, err := ask("Candidates per page", strconv.Itoa(active.Paging.PageSize))
		if err != nil {
			return err
		}
		size, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid page size %q: %w", raw, err)
		}
		change, err := store.SetPageSize(active.ID, size)
		if err != nil {
			return err
		}
		return refresh(ctx, m, change, logger)
	case PromptQuery:
		query, err := ask("Query", active.Query)
		if err != nil {
			return err
		}
		change, err := store.SetQuery(active.ID, query)
		if err != nil {
			return err
		}
		return refresh(ctx, m, change, logger)
	case PromptFacet:
		return editFacet(ctx, m, active, logger)
	case PromptSort:
		return chooseSort(ctx, m, active, logger)
	case PromptSwitch:
		return switchTab(store)
	case PromptNew:
		created := store.Create()
		logger.Info("tab opened", zap.String(loggerSessionField, created.ID))
		return nil
	case PromptRename:
		name, err := ask("Tab name", active.Name)
		if err != nil {
			return err
		}
		_, err = store.Rename(active.ID, name)
		return err
	case PromptClose:
		closed, err := m.Close(ctx, active.ID)
		if err != nil {
			return err
		}
		logger.Info("tab closed", zap.String(loggerSessionField, closed.ID), zap.String("name", closed.Name))
		return nil
	case PromptSave:
		saved, err := m.Save(ctx, active.ID)
		if err != nil {
			return err
		}
		logger.Info("tab saved",
			zap.String("remote_id", saved.RemoteID),
			zap.Bool("saved", saved.Saved),
		)
		return nil
	case PromptLoad:
		ids, err := m.Load(ctx, store.Active().Paging.PageSize)
		if err != nil {
			return err
		}
		logger.Info("opened saved tabs", zap.Int("count", len(ids)))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

const loggerSessionField = logger.FieldSessionID

func fetch(ctx context.Context, m *manager.Manager, id string, logger *zap.Logger) error {
	out, err := m.Fetch(ctx, id)
	if err != nil {
		if search.IsRetryable(err) {
			logger.Warn("search is temporarily unavailable, try again", zap.Error(err))
			return nil
		}
		return err
	}

	switch {
	case out.Discarded:
		logger.Info("results were outdated and dropped; fetch again")
	case out.Page != nil:
		logger.Info("results fetched",
			zap.Int("total", out.Page.Total),
			zap.Int("page", out.Session.Paging.Page),
			zap.Int("pages", out.Page.TotalPages),
			zap.Bool("page_adjusted", out.Adjusted),
		)
	}

	return nil
}

// refresh fetches again when a change dropped the cached page.
func refresh(ctx context.Context, m *manager.Manager, change session.Change, logger *zap.Logger) error {
	if !change.Invalidated {
		return nil
	}
	return fetch(ctx, m, change.Session.ID, logger)
}

func showResults(ctx context.Context, m *manager.Manager, logger *zap.Logger) error {
	view := m.ActiveView()
	if !view.Cached() {
		if err := fetch(ctx, m, view.Session.ID, logger); err != nil {
			return err
		}
		view = m.ActiveView()
	}

	if !view.Cached() {
		return nil
	}

	candidates := &search.Candidates{Items: view.Page.Items}
	if candidates.Len() == 0 {
		logger.Info("no candidates match this tab")
		return nil
	}

	for {
		resultsPrompt := promptui.Select{
			Label: fmt.Sprintf("Page %d of %d, %d candidates. Choose one and press ENTER",
				view.Session.Paging.Page, view.Page.TotalPages, view.Page.Total),
			Items: append(candidates.Labels(), PromptBack),
		}

		_, selected, err := resultsPrompt.Run()
		if err != nil {
			return err
		}

		if selected == PromptBack {
			return nil
		}

		candidate := candidates.FindByID(strings.Split(selected, " ")[0])
		if candidate == nil {
			return fmt.Errorf("there is no such candidate %s", selected)
		}

		pretty, _ := json.MarshalIndent(candidate.Raw, "", "  ")
		logger.Info(string(pretty), zap.String("candidate_id", candidate.ID))
	}
}

func editFacet(ctx context.Context, m *manager.Manager, active session.Snapshot, logger *zap.Logger) error {
	keys := facet.Keys()
	items := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		label := string(key)
		if v, ok := active.Facets[key]; ok {
			label += " = " + facet.String(v)
		}
		items = append(items, label)
	}

	facetPrompt := promptui.Select{
		Label: "Choose a facet",
		Items: append(items, PromptBack),
		Size:  len(items) + 1,
	}

	idx, selected, err := facetPrompt.Run()
	if err != nil {
		return err
	}
	if selected == PromptBack {
		return nil
	}

	key := keys[idx]
	value, err := askFacet(key, active.Facets[key])
	if err != nil {
		return err
	}

	change, err := m.Store().SetFacet(active.ID, key, value)
	if err != nil {
		return err
	}

	return refresh(ctx, m, change, logger)
}

// askFacet reads a value of the key's kind. A nil value clears the facet.
func askFacet(key facet.Key, current facet.Value) (facet.Value, error) {
	switch facet.Kinds[key] {
	case facet.KindList:
		def := ""
		if l, ok := current.(facet.List); ok {
			def = strings.Join(l, ",")
		}
		raw, err := ask(string(key)+" (comma separated, empty to clear)", def)
		if err != nil || strings.TrimSpace(raw) == "" {
			return nil, err
		}
		return facet.List(strings.Split(raw, ",")), nil
	case facet.KindRange:
		r, _ := current.(facet.Range)
		minValue, err := ask(string(key)+" min", r.Min)
		if err != nil {
			return nil, err
		}
		maxValue, err := ask(string(key)+" max", r.Max)
		if err != nil {
			return nil, err
		}
		return facet.Range{Min: minValue, Max: maxValue}, nil
	case facet.KindBool:
		boolPrompt := promptui.Select{
			Label: string(key),
			Items: []string{"yes", PromptClear},
		}
		_, selected, err := boolPrompt.Run()
		if err != nil || selected == PromptClear {
			return nil, err
		}
		return facet.Bool(true), nil
	case facet.KindGeo:
		return askGeo(current)
	default:
		raw, err := ask(string(key), facet.String(current))
		if err != nil || strings.TrimSpace(raw) == "" {
			return nil, err
		}
		return facet.Text(raw), nil
	}
}

func askGeo(current facet.Value) (facet.Value, error) {
	var g facet.Geo
	if v, ok := current.(facet.Geo); ok {
		g = v
	}

	lat, err := askFloat("Latitude (empty to clear)", g.Lat)
	if err != nil || lat == nil {
		return nil, err
	}
	lon, err := askFloat("Longitude", g.Lon)
	if err != nil || lon == nil {
		return nil, err
	}
	distance, err := askFloat("Radius, km", g.Distance)
	if err != nil {
		return nil, err
	}

	return facet.Geo{Lat: lat, Lon: lon, Distance: distance}, nil
}

func chooseSort(ctx context.Context, m *manager.Manager, active session.Snapshot, logger *zap.Logger) error {
	fields := session.SortFields()
	items := make([]string, 0, len(fields))
	for _, field := range fields {
		label := field
		if field == active.Sort.Field {
			label += " (" + string(active.Sort.Direction) + ")"
		}
		if !session.IsServerSort(field) {
			label += " [current page]"
		}
		items = append(items, label)
	}

	sortPrompt := promptui.Select{
		Label: "Sort by (choosing the active field flips the direction)",
		Items: append(items, PromptBack),
		Size:  len(items) + 1,
	}

	idx, selected, err := sortPrompt.Run()
	if err != nil {
		return err
	}
	if selected == PromptBack {
		return nil
	}

	outcome, change, err := m.Store().SetSort(active.ID, fields[idx])
	if err != nil {
		return err
	}

	logger.Debug("sort changed", zap.String("field", outcome.Sort.Field), zap.Stringer("mode", outcome.Mode))

	return refresh(ctx, m, change, logger)
}

func switchTab(store *session.Store) error {
	tabs := store.List()
	items := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		items = append(items, tabTitle(tab))
	}

	tabPrompt := promptui.Select{
		Label: "Choose a tab",
		Items: items,
	}

	idx, _, err := tabPrompt.Run()
	if err != nil {
		return err
	}

	return store.Activate(tabs[idx].ID)
}

func tabsLabel(tabs []session.Snapshot, view manager.View) string {
	titles := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		title := tabTitle(tab)
		if tab.Active {
			title = "[" + title + "]"
		}
		titles = append(titles, title)
	}

	status := "not fetched"
	if view.Cached() {
		status = fmt.Sprintf("page %d/%d, %d candidates", view.Session.Paging.Page, view.Page.TotalPages, view.Page.Total)
	}

	return fmt.Sprintf("%s | %s", strings.Join(titles, " "), status)
}

func tabTitle(tab session.Snapshot) string {
	title := tab.Name
	if title == "" {
		title = fmt.Sprintf("tab %d", tab.Index+1)
	}
	if tab.RemoteID != "" && !tab.Saved {
		title += "*"
	}
	return title
}

func ask(label, def string) (string, error) {
	p := promptui.Prompt{
		Label:     label,
		Default:   def,
		AllowEdit: true,
	}
	return p.Run()
}

func askFloat(label string, current *float64) (*float64, error) {
	def := ""
	if current != nil {
		def = strconv.FormatFloat(*current, 'f', -1, 64)
	}

	p := promptui.Prompt{
		Label:   label,
		Default: def,
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return nil
			}
			_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			return err
		},
		AllowEdit: true,
	}

	raw, err := p.Run()
	if err != nil || strings.TrimSpace(raw) == "" {
		return nil, err
	}

	f, _ := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return &f, nil
}
