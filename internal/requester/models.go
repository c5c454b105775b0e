package requester

import (
	"encoding/json"
	"time"

	"github.com/labara-io/labara-go/internal/domain"
)

// defaultTotalShards is used when a flag omits its shard count. All client
// implementations agree on this constant.
const defaultTotalShards = 10000

// Wire model for the /flag-config/v1/config JSON payload. The adapter
// below is the only place the engine touches the wire shape; everything
// downstream consumes the domain model.

type configResponse struct {
	CreatedAt  time.Time           `json:"createdAt"`
	Obfuscated bool                `json:"obfuscated"`
	Flags      map[string]wireFlag `json:"flags"`
}

type wireFlag struct {
	Key           string                   `json:"key"`
	Enabled       bool                     `json:"enabled"`
	VariationType string                   `json:"variationType"`
	Variations    map[string]wireVariation `json:"variations"`
	Allocations   []wireAllocation         `json:"allocations"`
	TotalShards   int                      `json:"totalShards"`
	EntityID      *int64                   `json:"entityId,omitempty"`
}

type wireVariation struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type wireAllocation struct {
	Key     string      `json:"key"`
	Rules   []wireRule  `json:"rules,omitempty"`
	StartAt *time.Time  `json:"startAt,omitempty"`
	EndAt   *time.Time  `json:"endAt,omitempty"`
	Splits  []wireSplit `json:"splits"`
	DoLog   bool        `json:"doLog"`
}

type wireRule struct {
	Conditions []wireCondition `json:"conditions"`
}

type wireCondition struct {
	Attribute string `json:"attribute"`
	Operator  string `json:"operator"`
	Value     any    `json:"value"`
}

type wireSplit struct {
	VariationKey string            `json:"variationKey"`
	Shards       []wireShard       `json:"shards"`
	ExtraLogging map[string]string `json:"extraLogging,omitempty"`
}

type wireShard struct {
	Salt   string      `json:"salt"`
	Ranges []wireRange `json:"ranges"`
}

type wireRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ParseConfiguration decodes a raw configuration payload into the domain
// model. It is used by the requester and by bootstrap loading.
func ParseConfiguration(payload []byte) (*domain.Configuration, error) {
	var resp configResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, domain.NewConfigurationError("malformed configuration payload", err)
	}
	return toDomain(&resp), nil
}

func toDomain(resp *configResponse) *domain.Configuration {
	cfg := &domain.Configuration{
		CreatedAt:  resp.CreatedAt,
		Obfuscated: resp.Obfuscated,
		Flags:      make(map[string]domain.Flag, len(resp.Flags)),
	}
	for key, f := range resp.Flags {
		cfg.Flags[key] = flagToDomain(f)
	}
	return cfg
}

func flagToDomain(f wireFlag) domain.Flag {
	flag := domain.Flag{
		Key:           f.Key,
		Enabled:       f.Enabled,
		VariationType: domain.VariationType(f.VariationType),
		TotalShards:   f.TotalShards,
		EntityID:      f.EntityID,
	}
	if flag.TotalShards <= 0 {
		flag.TotalShards = defaultTotalShards
	}

	flag.Variations = make(map[string]domain.Variation, len(f.Variations))
	for key, v := range f.Variations {
		flag.Variations[key] = domain.Variation{Key: v.Key, Value: v.Value}
	}

	flag.Allocations = make([]domain.Allocation, 0, len(f.Allocations))
	for _, a := range f.Allocations {
		flag.Allocations = append(flag.Allocations, allocationToDomain(a))
	}

	return flag
}

func allocationToDomain(a wireAllocation) domain.Allocation {
	allocation := domain.Allocation{
		Key:     a.Key,
		StartAt: a.StartAt,
		EndAt:   a.EndAt,
		DoLog:   a.DoLog,
	}

	for _, r := range a.Rules {
		rule := domain.Rule{Conditions: make([]domain.Condition, 0, len(r.Conditions))}
		for _, c := range r.Conditions {
			rule.Conditions = append(rule.Conditions, domain.Condition{
				Attribute: c.Attribute,
				Operator:  domain.Operator(c.Operator),
				Value:     c.Value,
			})
		}
		allocation.Rules = append(allocation.Rules, rule)
	}

	for _, s := range a.Splits {
		split := domain.Split{
			VariationKey: s.VariationKey,
			ExtraLogging: s.ExtraLogging,
		}
		for _, sh := range s.Shards {
			shard := domain.Shard{Salt: sh.Salt}
			for _, r := range sh.Ranges {
				shard.Ranges = append(shard.Ranges, domain.ShardRange{Start: r.Start, End: r.End})
			}
			split.Shards = append(split.Shards, shard)
		}
		allocation.Splits = append(allocation.Splits, split)
	}

	return allocation
}
