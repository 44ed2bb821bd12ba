package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/werner/examsync/internal/config"
	"github.com/werner/examsync/internal/output"
)

// validConfigKeys lists the supported config keys for set/get.
var validConfigKeys = []string{
	"server.url",
	"server.request_timeout",
	"server.probe_interval",
	"server.auto.enabled",
	"server.auto.on_start",
	"server.auto.interval",
}

func isValidConfigKey(key string) bool {
	for _, k := range validConfigKeys {
		if k == key {
			return true
		}
	}
	return false
}

func parseBool(val string) (bool, error) {
	switch strings.ToLower(val) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q (use true/false/1/0)", val)
	}
}

func validDuration(val string) error {
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", val, err)
	}
	if d <= 0 {
		return fmt.Errorf("duration %q must be positive", val)
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage examsync configuration",
	GroupID: "system",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]

		if !isValidConfigKey(key) {
			output.Error("unknown config key: %s", key)
			fmt.Println("Valid keys:", strings.Join(validConfigKeys, ", "))
			return fmt.Errorf("unknown config key: %s", key)
		}

		cfg, err := config.Load()
		if err != nil {
			output.Error("load config: %v", err)
			return err
		}

		switch key {
		case "server.url":
			cfg.Server.URL = val
		case "server.request_timeout":
			if err := validDuration(val); err != nil {
				output.Error("%v", err)
				return err
			}
			cfg.Server.RequestTimeout = val
		case "server.probe_interval":
			if err := validDuration(val); err != nil {
				output.Error("%v", err)
				return err
			}
			cfg.Server.ProbeInterval = val
		case "server.auto.enabled":
			b, err := parseBool(val)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			cfg.Server.Auto.Enabled = boolPtr(b)
		case "server.auto.on_start":
			b, err := parseBool(val)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			cfg.Server.Auto.OnStart = boolPtr(b)
		case "server.auto.interval":
			if err := validDuration(val); err != nil {
				output.Error("%v", err)
				return err
			}
			cfg.Server.Auto.Interval = val
		}

		if err := config.Save(cfg); err != nil {
			output.Error("save config: %v", err)
			return err
		}

		output.Success("set %s = %s", key, val)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a config value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		if !isValidConfigKey(key) {
			output.Error("unknown config key: %s", key)
			fmt.Println("Valid keys:", strings.Join(validConfigKeys, ", "))
			return fmt.Errorf("unknown config key: %s", key)
		}

		cfg, err := config.Load()
		if err != nil {
			output.Error("load config: %v", err)
			return err
		}

		var val string
		switch key {
		case "server.url":
			val = cfg.Server.URL
			if val == "" {
				val = config.GetServerURL() + " (default)"
			}
		case "server.request_timeout":
			val = cfg.Server.RequestTimeout
			if val == "" {
				val = "15s (default)"
			}
		case "server.probe_interval":
			val = cfg.Server.ProbeInterval
			if val == "" {
				val = "30s (default)"
			}
		case "server.auto.enabled":
			if cfg.Server.Auto.Enabled != nil {
				val = fmt.Sprintf("%t", *cfg.Server.Auto.Enabled)
			} else {
				val = "true (default)"
			}
		case "server.auto.on_start":
			if cfg.Server.Auto.OnStart != nil {
				val = fmt.Sprintf("%t", *cfg.Server.Auto.OnStart)
			} else {
				val = "true (default)"
			}
		case "server.auto.interval":
			val = cfg.Server.Auto.Interval
			if val == "" {
				val = "5m (default)"
			}
		}

		fmt.Println(val)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all config values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			output.Error("load config: %v", err)
			return err
		}

		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			output.Error("marshal config: %v", err)
			return err
		}

		fmt.Println(string(data))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
}
