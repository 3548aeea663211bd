package cli

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/nimburion/recordbench/pkg/config"
	mongostore "github.com/nimburion/recordbench/pkg/store/mongodb"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *app) newConfigCommand() *cobra.Command {
	var showSecrets bool
	show := func(cmd *cobra.Command, args []string) error {
		loader, err := a.loader(cmd.Flags())
		if err != nil {
			return err
		}
		cfg, secrets, err := loader.LoadWithSecrets()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if !showSecrets {
			cfg.MongoDB.URL = mongostore.RedactURL(cfg.MongoDB.URL)
		}
		settings, err := toSettings(cfg)
		if err != nil {
			return err
		}
		if !showSecrets && secrets != nil {
			mask, err := toSettings(secrets)
			if err != nil {
				return err
			}
			settings = redactSettingsMap(settings, mask)
		}
		formatted, err := formatSettings(settings)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), formatted)
		return nil
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE:  show,
	}
	configCmd.PersistentFlags().BoolVar(&showSecrets, "show-secrets", false, "show secret values and the MongoDB password")

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE:  show,
	}, &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := a.loader(cmd.Flags())
			if err != nil {
				return err
			}
			if _, err := loader.Load(); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	})
	return configCmd
}

// toSettings converts cfg into the generic map form viper works with, keyed by yaml tags.
func toSettings(cfg *config.Config) (map[string]interface{}, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	settings := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return settings, nil
}

func formatSettings(settings map[string]interface{}) (string, error) {
	if settings == nil {
		return "{}\n", nil
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

// redactSettingsMap masks every value whose counterpart in secrets is set.
func redactSettingsMap(settings, secrets map[string]interface{}) map[string]interface{} {
	if len(settings) == 0 || len(secrets) == 0 {
		return settings
	}
	out := make(map[string]interface{}, len(settings))
	for key, value := range settings {
		mask, ok := secrets[key]
		if !ok {
			out[key] = value
			continue
		}
		out[key] = redactSettingValue(value, mask)
	}
	return out
}

func redactSettingValue(value, mask interface{}) interface{} {
	if maskMap, ok := mask.(map[string]interface{}); ok {
		valueMap, ok := value.(map[string]interface{})
		if !ok {
			return value
		}
		return redactSettingsMap(valueMap, maskMap)
	}
	if shouldRedactSetting(mask) {
		return "***"
	}
	return value
}

func shouldRedactSetting(mask interface{}) bool {
	if mask == nil {
		return false
	}
	switch value := mask.(type) {
	case string:
		// Zero durations marshal as "0s" and mean the secrets file left them unset.
		if d, err := time.ParseDuration(value); err == nil {
			return d != 0
		}
		return strings.TrimSpace(value) != ""
	case bool:
		return value
	case int:
		return value != 0
	case float64:
		return value != 0
	default:
		return !reflect.ValueOf(mask).IsZero()
	}
}
