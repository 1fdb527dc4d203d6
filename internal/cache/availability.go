package cache

import (
	"context"
	"fmt"
	"time"
)

// VariantAvailability 规格可售数量快照
type VariantAvailability struct {
	VariantID        uint      `json:"variant_id"`
	StockQuantity    int       `json:"stock_quantity"`
	ReservedQuantity int       `json:"reserved_quantity"`
	Available        int       `json:"available"`
	IsLowStock       bool      `json:"is_low_stock"`
	NeedsReorder     bool      `json:"needs_reorder"`
	CachedAt         time.Time `json:"cached_at"`
}

// VariantCache 可售数量缓存，库存变动提交后整体失效
type VariantCache struct {
	ttl time.Duration
}

// NewVariantCache 创建可售数量缓存
func NewVariantCache(ttl time.Duration) *VariantCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &VariantCache{ttl: ttl}
}

// GetAvailability 读取快照
func (c *VariantCache) GetAvailability(ctx context.Context, variantID uint) (*VariantAvailability, bool, error) {
	var snapshot VariantAvailability
	hit, err := GetJSON(ctx, availabilityKey(variantID), &snapshot)
	if err != nil || !hit {
		return nil, false, err
	}
	return &snapshot, true, nil
}

// SetAvailability 写入快照
func (c *VariantCache) SetAvailability(ctx context.Context, snapshot VariantAvailability) error {
	if snapshot.VariantID == 0 {
		return nil
	}
	return SetJSON(ctx, availabilityKey(snapshot.VariantID), snapshot, c.ttl)
}

// InvalidateVariants 批量失效
func (c *VariantCache) InvalidateVariants(ctx context.Context, variantIDs []uint) error {
	if len(variantIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(variantIDs))
	for _, id := range variantIDs {
		keys = append(keys, availabilityKey(id))
	}
	return Del(ctx, keys...)
}

func availabilityKey(variantID uint) string {
	return fmt.Sprintf("stock:availability:%d", variantID)
}
