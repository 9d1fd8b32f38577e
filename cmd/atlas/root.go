package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	current *app
)

var rootCmd = &cobra.Command{
	Use:           "atlas",
	Short:         "Device encryption key, security policy and passcode for Atlas",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipsApp(cmd) {
			return nil
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		current = a
		return nil
	},
}

func closeApp() error {
	if current == nil {
		return nil
	}
	err := current.Close()
	current = nil
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding settings and the file keyring")
	rootCmd.PersistentFlags().String("keystore", "", "key store backend: keychain, keyring or memory (default: platform)")
	rootCmd.PersistentFlags().String("cipher", "aes", "cipher for new records: aes or chacha20poly1305")
	rootCmd.PersistentFlags().String("gate", "auto", "user-presence gate: auto, touchid, passcode or none")
	rootCmd.PersistentFlags().String("settings-store", "sqlite", "settings backend: sqlite or file")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn or error")

	bindFlagOrPanic("data_dir", "data-dir")
	bindFlagOrPanic("keystore.backend", "keystore")
	bindFlagOrPanic("cipher", "cipher")
	bindFlagOrPanic("gate", "gate")
	bindFlagOrPanic("settings.store", "settings-store")
	bindFlagOrPanic("log.format", "log-format")
	bindFlagOrPanic("log.level", "log-level")
}

func bindFlagOrPanic(configKey, flagName string) {
	if err := viper.BindPFlag(configKey, rootCmd.PersistentFlags().Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", flagName, err))
	}
}

func initConfig() {
	viper.SetDefault("data_dir", defaultDataDir())
	viper.SetDefault("keystore.backends", []string{})

	viper.SetEnvPrefix("ATLAS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(viper.GetString("data_dir"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".atlas"
	}
	return filepath.Join(dir, "atlas")
}

// skipsApp reports commands that run without opening the key store.
func skipsApp(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", "completion", "__complete", "version", "config":
		return true
	}
	return false
}
