package txbuilder

import (
	"context"
	"log/slog"

	"github.com/brc721/indexer/internal/config"
)

// resolveFeeRate returns feeRate unchanged when the caller supplied one,
// otherwise asks the node for a confTarget-block estimate and falls back to
// the Builder's default rate (config.DefaultFeeRateSatPerVByte when that is
// 0) if the node can't produce one (low-fee regtest/signet nodes routinely
// return "insufficient data").
func (b *Builder) resolveFeeRate(ctx context.Context, feeRate int64, confTarget int) int64 {
	if feeRate > 0 {
		return feeRate
	}

	btcPerKvB, err := b.rpc.EstimateSmartFee(ctx, confTarget)
	if err != nil || btcPerKvB <= 0 {
		fallback := int64(config.DefaultFeeRateSatPerVByte)
		if b.feeRate > 0 {
			fallback = b.feeRate
		}
		slog.Warn("fee estimation unavailable, using default", "error", err, "default", fallback)
		return fallback
	}

	satPerVByte := int64(btcPerKvB * 1e8 / 1000)
	if satPerVByte < 1 {
		satPerVByte = 1
	}
	return satPerVByte
}
