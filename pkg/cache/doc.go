// Package cache keeps decoded level collections keyed by their normalized
// search filters, so that repeating a search does not hit the backend again.
//
// Slots are addressed by a 128-bit murmur3 digest of the key and ordered in a
// B-tree by last access time, with the insertion index breaking ties. When
// the cache is full, Put evicts from the front of that order. A Janitor runs
// Expire on a cron schedule to drop slots that have been idle for the TTL.
//
// Basic usage:
//
//	c := cache.New(cache.Options{Capacity: 1024, TTL: 2 * time.Hour})
//	j := cache.NewJanitor(c, 5*time.Minute)
//	if err := j.Start(ctx); err != nil {
//		return err
//	}
//	defer j.Stop()
//
//	c.Put(key, collection)
//	if hit, ok := c.Get(key); ok {
//		// serve hit
//	}
package cache
