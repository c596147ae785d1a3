package repository

import "time"

const (
	defaultShardCount            = 16
	defaultMetricsUpdateInterval = 5 * time.Second
	defaultMongoDatabase         = "lounge"
	defaultMongoCollection       = "players"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithShardCount sets the number of independently locked shards.
func WithShardCount(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// MongoOption applies a configuration option to the MongoStore.
type MongoOption func(*mongoSettings)

type mongoSettings struct {
	database   string
	collection string
}

// WithMongoDatabase overrides the database name (default "lounge").
func WithMongoDatabase(name string) MongoOption {
	return func(s *mongoSettings) {
		if name != "" {
			s.database = name
		}
	}
}

// WithMongoCollection overrides the collection name (default "players").
func WithMongoCollection(name string) MongoOption {
	return func(s *mongoSettings) {
		if name != "" {
			s.collection = name
		}
	}
}
