// Package cache implements the bucketed response store behind every site's
// emulated Cache Storage. A Store is split into per-site partitions; each
// partition holds named buckets mapping a request identity (GET + URL,
// Vary-aware) to a full response snapshot. Two drivers back the store: a
// file-per-entry layout under StoragePath (temp file + rename) and a single
// LevelDB keyed by site/bucket prefixes. Strategy and worker code only see the
// Storage/Bucket interfaces, so tests and production share the same semantics.
package cache
