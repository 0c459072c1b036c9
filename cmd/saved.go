package cmd

import (
	"context"
	"encoding/json"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cvtabs/internal/facet"
	"github.com/spigell/cvtabs/internal/logger"
)

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "List saved search tabs",
	Run: func(cmd *cobra.Command, _ []string) {
		listSaved(cmd)
	},
}

func init() {
	rootCmd.AddCommand(savedCmd)

	savedCmd.Flags().IntP("page", "p", 1, "page of saved tabs to show")
}

type savedTab struct {
	RemoteID string         `json:"id"`
	Name     string         `json:"name"`
	Query    string         `json:"query,omitempty"`
	Facets   map[string]any `json:"facets,omitempty"`
	Sort     string         `json:"sort"`
}

func listSaved(cmd *cobra.Command) {
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

	m, err := newManager(config, logger)
	if err != nil {
		logger.Fatal("loading api token", zap.Error(err))
	}

	page, _ := cmd.Flags().GetInt("page")
	defs, total, err := m.Saved(ctx, page, config.PageSize)
	if err != nil {
		logger.Fatal("listing saved tabs", zap.Error(err))
	}

	tabs := make([]savedTab, 0, len(defs))
	for _, def := range defs {
		tabs = append(tabs, savedTab{
			RemoteID: def.RemoteID,
			Name:     def.Name,
			Query:    def.Query,
			Facets:   facet.Encode(def.Facets),
			Sort:     def.Sort.Field + " " + string(def.Sort.Direction),
		})
	}

	pretty, _ := json.MarshalIndent(tabs, "", "  ")
	logger.Info(string(pretty), zap.Int("total", total), zap.Int("page", page))
}
