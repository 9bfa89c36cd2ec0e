// Command mrftrain trains a sparse MRF item-item model from an interaction
// triples file and writes the resulting weight matrix.
//
// Configuration is layered: built-in defaults, then an optional YAML config
// file, then MRF_-prefixed environment variables, then flags.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/okanv/mrfcf"
	"github.com/okanv/mrfcf/matio"
)

type config struct {
	Input  string `koanf:"input"`
	Output string `koanf:"output"`
	Users  int    `koanf:"users"`
	Items  int    `koanf:"items"`

	Alpha         float64 `koanf:"alpha"`
	BlockSize     int     `koanf:"block_size"`
	ThresholdMem  float64 `koanf:"thd4mem"`
	ThresholdComp float64 `koanf:"thd4comp"`
	MaxInColumn   int     `koanf:"max_in_column"`
	R             float64 `koanf:"r"`
	L2Reg         float64 `koanf:"l2reg"`
	Workers       int     `koanf:"workers"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

func defaultConfig() config {
	opt := mrfcf.DefaultOptions()
	return config{
		Output:        "weights.json",
		Alpha:         opt.Alpha,
		BlockSize:     opt.BlockSize,
		ThresholdMem:  opt.ThresholdMem,
		ThresholdComp: opt.ThresholdComp,
		MaxInColumn:   opt.MaxInColumn,
		R:             opt.R,
		L2Reg:         opt.L2Reg,
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

func loadConfig(path string) (config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return config{}, fmt.Errorf("defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	envProvider := env.Provider("MRF_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "MRF_"))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return config{}, fmt.Errorf("environment: %w", err)
	}
	var cfg config
	if err := k.Unmarshal("", &cfg); err != nil {
		return config{}, fmt.Errorf("unmarshal: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.LogFormat == "json" {
		log = zerolog.New(os.Stderr)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return log.Level(level).With().Timestamp().Logger()
}

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "mrftrain",
		Short:         "Train a sparse MRF item-item model from interaction triples",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	train := &cobra.Command{
		Use:   "train [interactions.csv]",
		Short: "Train and write the weight matrix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Input = args[0]
			}
			if cfg.Input == "" {
				return fmt.Errorf("no input file given")
			}
			return runTrain(cfg)
		},
	}
	root.AddCommand(train)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mrftrain:", err)
		os.Exit(1)
	}
}

func runTrain(cfg config) error {
	log := newLogger(cfg)

	in, err := os.Open(cfg.Input)
	if err != nil {
		return err
	}
	defer in.Close()
	x, err := matio.ReadInteractionsCSV(in, cfg.Users, cfg.Items)
	if err != nil {
		return fmt.Errorf("read interactions: %w", err)
	}
	log.Info().Int("users", x.Users).Int("items", x.Items).Int("nnz", x.NNZ()).
		Msg("interactions loaded")

	trainer := mrfcf.NewTrainer(x)
	metrics, err := trainer.Train(mrfcf.Options{
		Alpha:         cfg.Alpha,
		BlockSize:     cfg.BlockSize,
		ThresholdMem:  cfg.ThresholdMem,
		ThresholdComp: cfg.ThresholdComp,
		MaxInColumn:   cfg.MaxInColumn,
		R:             cfg.R,
		L2Reg:         cfg.L2Reg,
		Workers:       cfg.Workers,
		Logger:        &log,
	})
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	out, err := os.Create(cfg.Output)
	if err != nil {
		return err
	}
	defer out.Close()
	switch filepath.Ext(cfg.Output) {
	case ".csv":
		err = matio.WriteTriplesCSV(out, trainer.Weights.Triples())
	default:
		err = matio.WriteMatrixJSON(out, trainer.Weights)
	}
	if err != nil {
		return fmt.Errorf("write weights: %w", err)
	}

	log.Info().
		Dur("covariance", metrics.Covariance).
		Dur("solve", metrics.Solve).
		Dur("total", metrics.Total).
		Int("blocks", metrics.BlockCount).
		Int("weight_nnz", metrics.WeightNNZ).
		Str("output", cfg.Output).
		Msg("training finished")
	return nil
}
