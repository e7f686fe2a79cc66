package main

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/histsim/timing/config"
)

func newConfigCmd() *cobra.Command {
	var (
		configPath string
		envFiles   []string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as JSON.",
		Long: "`config` prints the configuration a run would use: defaults, " +
			"then --config, then .env files and HIST_* variables.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, envFiles)
			if err != nil {
				return err
			}

			if outPath != "" {
				return cfg.Save(outPath)
			}

			data, err := cfg.JSON()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, err = out.Write(append(data, '\n'))

			return err
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to configuration JSON file")
	cmd.Flags().StringSliceVar(&envFiles, "env", []string{".env"}, "Optional .env files")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the configuration to a file")

	return cmd
}

// loadConfig resolves the configuration in order: defaults, JSON file,
// .env files and HIST_* environment variables.
func loadConfig(path string, envFiles []string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(envFiles...); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
