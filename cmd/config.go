package cmd

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"queuelab/internal/runner"
)

// fileConfig is the YAML shape of $HOME/.queuelab.yaml.
type fileConfig struct {
	Stages        int    `yaml:"stages"`
	Channels      []int  `yaml:"channels"`
	Capacity      []int  `yaml:"capacity"`
	Interval      string `yaml:"interval"`
	MinProcessing string `yaml:"min-processing"`
	MaxProcessing string `yaml:"max-processing"`
	Duration      string `yaml:"duration"`
	PollInterval  string `yaml:"poll-interval"`
	Seed          int64  `yaml:"seed"`
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration as YAML",
	Long: `Print the configuration a run would use after merging flags, QUEUELAB_*
environment variables, the config file and defaults. The output is a valid
config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		data, err := marshalConfig(cfg)
		if err != nil {
			return err
		}
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# from %s\n", used)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

// loadConfig builds a runner.Config from v. Channel and capacity lists with
// a single value apply to every stage.
func loadConfig(v *viper.Viper) (runner.Config, error) {
	channels, err := intList(v.Get("channels"))
	if err != nil {
		return runner.Config{}, fmt.Errorf("%w: channels: %v", runner.ErrInvalidConfig, err)
	}
	capacity, err := intList(v.Get("capacity"))
	if err != nil {
		return runner.Config{}, fmt.Errorf("%w: capacity: %v", runner.ErrInvalidConfig, err)
	}
	stages, err := runner.BuildStages(v.GetInt("stages"), channels, capacity)
	if err != nil {
		return runner.Config{}, err
	}

	cfg := runner.Config{
		Stages:             stages,
		GenerationInterval: v.GetDuration("interval"),
		MinProcessing:      v.GetDuration("min-processing"),
		MaxProcessing:      v.GetDuration("max-processing"),
		Duration:           v.GetDuration("duration"),
		PollInterval:       v.GetDuration("poll-interval"),
		Seed:               v.GetInt64("seed"),
	}
	return cfg, cfg.Validate()
}

// intList accepts a list, a single number or a comma separated string
// (as set through the environment).
func intList(raw any) ([]int, error) {
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case []int:
		return val, nil
	case string:
		var out []int
		for _, part := range strings.Split(strings.Trim(val, "[]"), ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := cast.ToIntE(part)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	}
	if n, err := cast.ToIntE(raw); err == nil {
		return []int{n}, nil
	}
	return cast.ToIntSliceE(raw)
}

func marshalConfig(cfg runner.Config) ([]byte, error) {
	fc := fileConfig{
		Stages:        len(cfg.Stages),
		Interval:      cfg.GenerationInterval.String(),
		MinProcessing: cfg.MinProcessing.String(),
		MaxProcessing: cfg.MaxProcessing.String(),
		Duration:      cfg.Duration.String(),
		PollInterval:  cfg.PollInterval.String(),
		Seed:          cfg.Seed,
	}
	for _, s := range cfg.Stages {
		fc.Channels = append(fc.Channels, s.Channels)
		fc.Capacity = append(fc.Capacity, s.Capacity)
	}
	return yaml.Marshal(fc)
}
