// Package catalog holds the channel catalog used to resolve channel ids
// reported by set-top boxes into titles and images.
//
// The catalog is an immutable snapshot swapped atomically on refresh:
// readers never block and never observe a partially built catalog. A failed
// refresh leaves the previous snapshot in place.
//
// Refresher runs Refresh on a cron schedule.
package catalog
