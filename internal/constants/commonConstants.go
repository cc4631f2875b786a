package constants

type (
	APIStatus    string
	HealthStatus string
	CachePrefix  string
)

const (
	APIStatusSuccess APIStatus = "success"
	APIStatusError   APIStatus = "error"

	HealthStatusOk   HealthStatus = "ok"
	HealthStatusDown HealthStatus = "down"

	CachePrefixReference CachePrefix = "ref:"
	CachePrefixFileLock  CachePrefix = "flightlog:lock:"
)

// BackfillConsumerGroup is the Redis stream consumer group of the backfill workers.
const BackfillConsumerGroup = "backfill-workers"
