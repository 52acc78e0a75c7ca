package ledger

// Config holds release fees in basis points of the escrow total.
// Results are floored to the minor unit.
type Config struct {
	PlatformFeeBps     int64 `json:"platform_fee_bps" mapstructure:"platform_fee_bps"`
	AgentCommissionBps int64 `json:"agent_commission_bps" mapstructure:"agent_commission_bps"`
}

// DefaultConfig is a 2% platform fee and a 1% agent commission.
func DefaultConfig() Config {
	return Config{PlatformFeeBps: 200, AgentCommissionBps: 100}
}

// Valid reports whether the fees leave the seller a non-negative share.
func (c Config) Valid() bool {
	return c.PlatformFeeBps >= 0 && c.AgentCommissionBps >= 0 &&
		c.PlatformFeeBps+c.AgentCommissionBps <= 10_000
}

// Settlement is the split of an escrow total on release.
type Settlement struct {
	Total           int64 `json:"total"`
	PlatformFee     int64 `json:"platform_fee"`
	AgentCommission int64 `json:"agent_commission"`
	SellerAmount    int64 `json:"seller_amount"`
}

// Split divides total between platform, agent and seller. The seller gets
// the remainder so the parts always sum to total.
func (c Config) Split(total int64, hasAgent bool) Settlement {
	s := Settlement{Total: total}
	s.PlatformFee = basisPoints(total, c.PlatformFeeBps)
	if hasAgent {
		s.AgentCommission = basisPoints(total, c.AgentCommissionBps)
	}
	s.SellerAmount = total - s.PlatformFee - s.AgentCommission
	return s
}

// basisPoints is floor(total*bps/10000) without forming total*bps, which
// overflows int64 for totals above roughly 9.2e14 at 10000 bps.
func basisPoints(total, bps int64) int64 {
	return total/10_000*bps + total%10_000*bps/10_000
}
