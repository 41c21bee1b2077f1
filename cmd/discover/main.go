// Command discover connects to a vendor device once and prints the devices
// a session would expose, as YAML.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/KevinKickass/GiraIoTCore/internal/config"
	"github.com/KevinKickass/GiraIoTCore/internal/devices"
	"github.com/KevinKickass/GiraIoTCore/internal/gira"
	"github.com/KevinKickass/GiraIoTCore/internal/topology"
	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type report struct {
	Host     string                 `yaml:"host"`
	Lights   []*types.LightDevice   `yaml:"lights"`
	Climates []*types.ClimateDevice `yaml:"climates"`
	Covers   []*types.CoverDevice   `yaml:"covers"`
	Values   types.ValueSnapshot    `yaml:"values,omitempty"`
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	withValues := flag.Bool("values", false, "include the raw values of every function")
	timeout := flag.Duration("timeout", time.Minute, "overall discovery timeout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	out, err := discover(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Discovery failed", zap.Error(err))
	}
	if !*withValues {
		out.Values = nil
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		logger.Fatal("Failed to encode report", zap.Error(err))
	}
	_ = enc.Close()
}

func discover(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*report, error) {
	client := gira.NewClient(gira.ClientOptions{
		Host:               cfg.Vendor.Host,
		Username:           cfg.Vendor.Username,
		Password:           cfg.Vendor.Password,
		ClientID:           cfg.Vendor.ClientID,
		Timeout:            cfg.Vendor.Timeout,
		InsecureSkipVerify: cfg.Vendor.InsecureSkipVerify,
	}, logger)
	defer client.Close()

	token, err := client.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	doc, err := client.FetchTopology(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetch topology: %w", err)
	}

	indexer, err := topology.NewIndexer(cfg.Topology.TradePositions(), logger)
	if err != nil {
		return nil, err
	}
	idx, err := indexer.Index(doc)
	if err != nil {
		return nil, fmt.Errorf("index topology: %w", err)
	}

	seed := make(types.ValueSnapshot)
	for _, fid := range idx.FunctionIDs() {
		values, err := client.FetchValues(ctx, token, fid)
		if err != nil {
			return nil, fmt.Errorf("fetch values of %s: %w", fid, err)
		}
		seed[fid] = values
	}

	out := &report{Host: cfg.Vendor.Host, Values: seed}
	for _, rec := range devices.Build(idx, seed) {
		switch d := rec.(type) {
		case *types.LightDevice:
			out.Lights = append(out.Lights, d)
		case *types.ClimateDevice:
			out.Climates = append(out.Climates, d)
		case *types.CoverDevice:
			out.Covers = append(out.Covers, d)
		}
	}
	return out, nil
}
