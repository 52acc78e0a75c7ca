// Package redis implements store.Store on Redis. It is the broker the
// dispatcher and the worker pools share.
//
// Each job is a Hash. The full record is a msgpack blob in the "data"
// field. The fields that change while a job runs (state, worker, lease and
// heartbeat) are separate Hash fields so Lua scripts can update them
// atomically. Every queue has three Sorted Sets:
//
//	escrow:q:{name}:delayed  waiting jobs scored by RunAt (unix ms)
//	escrow:q:{name}:ready    due jobs scored by priority, then sequence
//	escrow:q:{name}:active   claimed jobs scored by last heartbeat
//
// A claim moves due jobs from delayed to ready and pops the best ready
// jobs in one script, so two workers never hold the same job.
//
// The caller owns the client lifecycle:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
