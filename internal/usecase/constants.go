package usecase

const (
	// DefaultWorkers bounds per-asset parallelism in a run.
	DefaultWorkers = 4

	// DefaultPriceConcurrency bounds concurrent price-oracle lookups.
	DefaultPriceConcurrency = 8

	// DefaultLongTermDays is the IRS short/long boundary.
	DefaultLongTermDays = 365
)
