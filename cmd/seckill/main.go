package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/polzovatel/seckill-agent/internal/config"
)

var version = "dev"

// errRunFailed marks a run that ended without reaching payment.
var errRunFailed = errors.New("run did not reach payment")

func main() {
	_ = godotenv.Load()
	root := newRootCmd(viper.New(), os.Stdin, os.Stdout)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper, stdin io.Reader, stdout io.Writer) *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:           "seckill",
		Short:         "Drive a cart through checkout the moment a sale opens",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}
	root.SetOut(stdout)
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./seckill.yaml)")
	root.AddCommand(
		newRunCmd(v, stdin, stdout),
		newClassifyCmd(v, stdout),
		newVersionCmd(stdout),
	)
	return root
}

// initConfig reads the config file and environment into v.
func initConfig(v *viper.Viper, cfgFile string) error {
	config.SetDefaults(v)
	config.BindEnv(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("seckill")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if cfg.JSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(stdout, "seckill", version)
			return err
		},
	}
}
