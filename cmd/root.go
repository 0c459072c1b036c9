package cmd

import (
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "cvtabs"
)

type Config struct {
	Search      *ServiceConfig `mapstructure:"search" validate:"required"`
	Persistence *ServiceConfig `mapstructure:"persistence"`
	UserAgent   string         `mapstructure:"user-agent"`
	TokenFile   string         `mapstructure:"token-file"`
	PageSize    int            `mapstructure:"page-size" validate:"gte=0,lte=200"`
	CacheTTL    time.Duration  `mapstructure:"cache-ttl" validate:"gte=0"`
	HTTPTimeout time.Duration  `mapstructure:"http-timeout" validate:"gte=0"`
	FilterType  string         `mapstructure:"filter-type"`
}

type ServiceConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cvtabs is a terminal dashboard for running several candidate searches side by side",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("token-file", "CVTABS_TOKEN_FILE"); err != nil {
		log.Fatalf("binding CVTABS_TOKEN_FILE environment variable: %v", err)
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cvtabs.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090. Default is unset.")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("metrics-addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
}

func setDefaults() {
	viper.SetDefault("page-size", 25)
	// Cached pages live until the session changes.
	viper.SetDefault("cache-ttl", time.Duration(0))
	viper.SetDefault("http-timeout", 10*time.Second)
	viper.SetDefault("filter-type", "filter")
}

func initConfig() {
	// Only commands talking to the services need a config.
	if runCmd.CalledAs() == "" && savedCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
		viper.SetConfigType("yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		return nil, nil
	}

	if err := validator.New().Struct(config); err != nil {
		return config, err
	}

	return config, nil
}
