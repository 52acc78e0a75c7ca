package redis

import goredis "github.com/redis/go-redis/v9"

// enqueueScript inserts a waiting job.
//
// KEYS: job, job_ids, delayed
// ARGV: id, data, run_at_ms, ready_score
// Returns 0 if the job exists, 1 otherwise.
var enqueueScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'data', ARGV[2], 'state', 'waiting', 'score', ARGV[4])
redis.call('SADD', KEYS[2], ARGV[1])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`)

// claimScript promotes due jobs, then pops up to limit ready jobs and
// marks them active under the given leases.
//
// KEYS: delayed, ready, active
// ARGV: now_ms, now_text, worker_id, job_key_prefix, lease_1 .. lease_n
// Returns the claimed job IDs with their leases: {id, lease, id, lease, ...}.
var claimScript = goredis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(due) do
  local score = redis.call('HGET', ARGV[4] .. id, 'score')
  if score then
    redis.call('ZADD', KEYS[2], score, id)
  end
  redis.call('ZREM', KEYS[1], id)
end

local limit = #ARGV - 4
local out = {}
if limit <= 0 then
  return out
end
local popped = redis.call('ZPOPMIN', KEYS[2], limit)
local n = 0
for i = 1, #popped, 2 do
  local id = popped[i]
  n = n + 1
  local lease = ARGV[4 + n]
  redis.call('HSET', ARGV[4] .. id,
    'state', 'active', 'worker_id', ARGV[3], 'lease_id', lease,
    'started_at', ARGV[2], 'heartbeat_at', ARGV[2])
  redis.call('ZADD', KEYS[3], ARGV[1], id)
  table.insert(out, id)
  table.insert(out, lease)
end
return out
`)

// settleScript stores the outcome of an active job if the lease still
// holds.
//
// KEYS: job, active, delayed
// ARGV: id, lease, data, state, run_at_ms
// Returns 1 on success, 0 if the lease was lost, -1 if the job is gone.
var settleScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local fields = redis.call('HMGET', KEYS[1], 'state', 'lease_id')
if fields[1] ~= 'active' or fields[2] ~= ARGV[2] then
  return 0
end
redis.call('HSET', KEYS[1], 'data', ARGV[3], 'state', ARGV[4])
redis.call('HDEL', KEYS[1], 'worker_id', 'lease_id', 'heartbeat_at')
redis.call('ZREM', KEYS[2], ARGV[1])
if ARGV[4] == 'waiting' then
  redis.call('HDEL', KEYS[1], 'started_at')
  redis.call('ZADD', KEYS[3], ARGV[5], ARGV[1])
end
return 1
`)

// heartbeatScript refreshes the heartbeat of a job held by lease.
//
// KEYS: job, active
// ARGV: id, lease, now_ms, now_text
// Returns 1 on success, 0 if the lease was lost, -1 if the job is gone.
var heartbeatScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local fields = redis.call('HMGET', KEYS[1], 'state', 'lease_id')
if fields[1] ~= 'active' or fields[2] ~= ARGV[2] then
  return 0
end
redis.call('HSET', KEYS[1], 'heartbeat_at', ARGV[4])
redis.call('ZADD', KEYS[2], 'XX', ARGV[3], ARGV[1])
return 1
`)

// requeueScript returns active jobs not seen since cutoff to the ready set.
//
// KEYS: active, ready
// ARGV: cutoff_ms, job_key_prefix
// Returns the requeued job IDs.
var requeueScript = goredis.NewScript(`
local stalled = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local out = {}
for _, id in ipairs(stalled) do
  local key = ARGV[2] .. id
  redis.call('ZREM', KEYS[1], id)
  if redis.call('HGET', key, 'state') == 'active' then
    redis.call('HSET', key, 'state', 'waiting')
    redis.call('HDEL', key, 'worker_id', 'lease_id', 'heartbeat_at', 'started_at')
    redis.call('ZADD', KEYS[2], redis.call('HGET', key, 'score'), id)
    table.insert(out, id)
  end
end
return out
`)

// removeScript deletes a waiting job.
//
// KEYS: job, job_ids, delayed, ready
// ARGV: id
// Returns 1 on success, 0 if the job is not waiting, -1 if it is gone.
var removeScript = goredis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state then
  return -1
end
if state ~= 'waiting' then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
redis.call('ZREM', KEYS[3], ARGV[1])
redis.call('ZREM', KEYS[4], ARGV[1])
return 1
`)

var allScripts = []*goredis.Script{
	enqueueScript, claimScript, settleScript, heartbeatScript, requeueScript, removeScript,
}
