// Package redis implements store.Store on Redis with
// github.com/redis/go-redis/v9.
//
// Jobs are Hashes indexed by a per-queue Sorted Set scored by RunAt, so
// the timer queue pops only due jobs (a Lua script makes the pop atomic).
// Runs are Hashes; ClaimRun is a Lua compare-and-set on the run state so
// only one wake-up activates a sleeping run. Notification dedup keys use
// SET NX PX.
//
// The caller owns the client lifecycle:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
