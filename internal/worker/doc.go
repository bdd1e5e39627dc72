// Package worker emulates the service-worker lifecycle of a single site:
// install pre-caches the static asset list into the static bucket, activate
// sweeps buckets that are not part of the current version and claims clients,
// and the skipWaiting control message promotes a waiting version.
package worker
