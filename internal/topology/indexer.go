// Package topology turns the vendor UI configuration document into a flat
// function index grouped by trade.
package topology

import (
	"fmt"

	"github.com/KevinKickass/GiraIoTCore/internal/gira"
	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"
)

// DefaultTradePositions are the positions of the known trades in the
// document's trades array.
var DefaultTradePositions = map[types.Trade]int{
	types.TradeLighting: 0,
	types.TradeCover:    2,
	types.TradeClimate:  3,
}

// tradeOrder decides which trade a function listed in several trades
// belongs to: the first one.
var tradeOrder = []types.Trade{types.TradeLighting, types.TradeClimate, types.TradeCover}

// Index is the result of indexing a UI configuration document.
type Index struct {
	FunctionsByID map[string]*types.FunctionDescriptor
	TradeGroups   map[types.Trade][]string
}

// Functions returns the descriptors of a trade group in document order.
func (idx *Index) Functions(trade types.Trade) []*types.FunctionDescriptor {
	ids := idx.TradeGroups[trade]
	out := make([]*types.FunctionDescriptor, 0, len(ids))
	for _, id := range ids {
		if fn, ok := idx.FunctionsByID[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

// FunctionIDs returns every function id that belongs to a known trade group,
// each once.
func (idx *Index) FunctionIDs() []string {
	out := make([]string, 0, len(idx.FunctionsByID))
	seen := make(map[string]bool, len(idx.FunctionsByID))
	for _, trade := range tradeOrder {
		for _, id := range idx.TradeGroups[trade] {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

type uiConfig struct {
	UID       string       `mapstructure:"uid"`
	Functions []uiFunction `mapstructure:"functions"`
	Trades    []uiTrade    `mapstructure:"trades"`
}

type uiFunction struct {
	UID          string        `mapstructure:"uid"`
	DisplayName  string        `mapstructure:"displayName"`
	FunctionType string        `mapstructure:"functionType"`
	ChannelType  string        `mapstructure:"channelType"`
	DataPoints   []uiDataPoint `mapstructure:"dataPoints"`
}

type uiDataPoint struct {
	UID  string `mapstructure:"uid"`
	Name string `mapstructure:"name"`
}

type uiTrade struct {
	DisplayName string   `mapstructure:"displayName"`
	Functions   []string `mapstructure:"functions"`
}

// Indexer parses UI configuration documents.
type Indexer struct {
	validator *Validator
	positions map[types.Trade]int
	logger    *zap.Logger
}

// NewIndexer creates an indexer. A nil positions map uses DefaultTradePositions.
func NewIndexer(positions map[types.Trade]int, logger *zap.Logger) (*Indexer, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}
	if positions == nil {
		positions = DefaultTradePositions
	}

	return &Indexer{
		validator: validator,
		positions: positions,
		logger:    logger.With(zap.String("component", "topology")),
	}, nil
}

// Index validates and flattens a document. A missing trade group yields an
// empty function list, not an error.
func (i *Indexer) Index(doc types.TopologyDocument) (*Index, error) {
	if err := i.validator.ValidateDocument(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", gira.ErrDecode, err)
	}

	var cfg uiConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(map[string]any(doc)); err != nil {
		return nil, fmt.Errorf("%w: decode uiconfig: %w", gira.ErrDecode, err)
	}

	idx := &Index{
		FunctionsByID: make(map[string]*types.FunctionDescriptor, len(cfg.Functions)),
		TradeGroups:   make(map[types.Trade][]string, len(i.positions)),
	}

	for _, fn := range cfg.Functions {
		desc := &types.FunctionDescriptor{
			ID:          fn.UID,
			DisplayName: fn.DisplayName,
			DataPoints:  make([]types.DataPoint, 0, len(fn.DataPoints)),
		}
		for _, dp := range fn.DataPoints {
			if dp.UID == "" {
				i.logger.Debug("Skipping data point without uid",
					zap.String("function", fn.UID),
					zap.String("name", dp.Name))
				continue
			}
			desc.DataPoints = append(desc.DataPoints, types.DataPoint{Name: dp.Name, ID: dp.UID})
		}
		if _, dup := idx.FunctionsByID[fn.UID]; dup {
			i.logger.Warn("Duplicate function uid, keeping first", zap.String("function", fn.UID))
			continue
		}
		idx.FunctionsByID[fn.UID] = desc
	}

	for _, trade := range tradeOrder {
		pos, configured := i.positions[trade]
		if !configured {
			continue
		}
		if pos < 0 || pos >= len(cfg.Trades) {
			idx.TradeGroups[trade] = []string{}
			i.logger.Info("Trade group absent", zap.String("trade", string(trade)), zap.Int("position", pos))
			continue
		}

		ids := make([]string, 0, len(cfg.Trades[pos].Functions))
		for _, fid := range cfg.Trades[pos].Functions {
			desc, ok := idx.FunctionsByID[fid]
			if !ok {
				i.logger.Warn("Trade references unknown function",
					zap.String("trade", string(trade)),
					zap.String("function", fid))
				continue
			}
			if desc.Trade == "" {
				desc.Trade = trade
			}
			ids = append(ids, fid)
		}
		idx.TradeGroups[trade] = ids
	}

	i.logger.Info("Topology indexed",
		zap.Int("functions", len(idx.FunctionsByID)),
		zap.Int("lights", len(idx.TradeGroups[types.TradeLighting])),
		zap.Int("climates", len(idx.TradeGroups[types.TradeClimate])),
		zap.Int("covers", len(idx.TradeGroups[types.TradeCover])))

	return idx, nil
}
