// Package cache provides the memory and Redis backed key/value cache used by
// HTTP action providers to avoid repeated upstream lookups.
package cache
