package pricing

// All arithmetic in this package is integer-only. Costs are minor currency
// units (cents); quantities are raw provider measurements (seconds of call
// time, characters of message text).

const (
	// SecondsPerMinute is the billing granularity for call time.
	SecondsPerMinute = 60
	// CharsPerSegment is the billing granularity for SMS text.
	CharsPerSegment = 70
)

// Table holds the per-unit prices for the metered resources.
type Table struct {
	CallPerMinuteCents int64
	SMSPerSegmentCents int64
}

// QuantityToUnits converts a raw measurement into discrete billable units
// using ceiling division: any partial unit consumed is billed in full.
// A zero or negative quantity bills zero units.
func QuantityToUnits(raw, granularity int64) int64 {
	if raw <= 0 || granularity <= 0 {
		return 0
	}
	return (raw + granularity - 1) / granularity
}

// UnitsToCost prices the given number of units.
func UnitsToCost(units, pricePerUnit int64) int64 {
	if units <= 0 {
		return 0
	}
	return units * pricePerUnit
}

// SplitUnits divides the required units into a quota-covered portion and a
// wallet-billed portion. The split is quota-first: subscription allowance is
// consumed before any money is. It never claims past the quota limit and the
// two portions always sum to required.
func SplitUnits(quotaLimit, quotaUsed, required int64) (fromQuota, toPay int64) {
	if required <= 0 {
		return 0, 0
	}
	available := quotaLimit - quotaUsed
	if available < 0 {
		available = 0
	}
	fromQuota = required
	if available < fromQuota {
		fromQuota = available
	}
	return fromQuota, required - fromQuota
}
