package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dpedu/b2mirror/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// viper key -> flag name
var flagKeys = map[string]string{
	"workers":      "workers",
	"batch_size":   "batch-size",
	"exclude":      "exclude",
	"exclude_from": "exclude-from",
	"compare":      "compare",
	"keep":         "keep",
	"index":        "index",
	"access_key":   "access-key",
	"secret_key":   "secret-key",
	"region":       "region",
	"endpoint":     "endpoint",
}

func addCredentialFlags(flags *pflag.FlagSet) {
	flags.String("access-key", "", "access key id (B2 application key id)")
	flags.String("secret-key", "", "secret access key (B2 application key)")
	flags.String("region", "", "bucket region, for B2 the cluster id such as us-west-004")
	flags.String("endpoint", "", "custom S3 compatible endpoint URL")
}

// loadConfig resolves flags, environment and the optional config file into
// a config.Config. Flags win over environment, environment over the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	if cfgFlag := cmd.Flag("config"); cfgFlag != nil && cfgFlag.Changed {
		v.SetConfigFile(cfgFlag.Value.String())
	} else {
		v.AddConfigPath(config.DefaultConfigDir)
		v.SetConfigName(config.DefaultConfigName)
	}

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		var notFound viper.ConfigFileNotFoundError
		if !enoent && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	for key, name := range flagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, err
			}
		}
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	// native B2 tool variables as a fallback
	_ = v.BindEnv("access_key", config.EnvPrefix+"_ACCESS_KEY", "B2_APPLICATION_KEY_ID")
	_ = v.BindEnv("secret_key", config.EnvPrefix+"_SECRET_KEY", "B2_APPLICATION_KEY")

	cfg := &config.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	return cfg, nil
}
