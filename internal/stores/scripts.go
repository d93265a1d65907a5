package stores

import "github.com/redis/go-redis/v9"

// windowScript evaluates one request against a fixed window.
//
// KEYS[1] = counter hash (fields createdAt, count)
// KEYS[2] = block marker
// ARGV[1] = now (unix ms)
// ARGV[2] = window (ms)
// ARGV[3] = limit
//
// Returns {allowed, count, createdAt, blockedAt, blockStarted}.
var windowScript = redis.NewScript(`
local counter = KEYS[1]
local marker = KEYS[2]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local fields = redis.call("HMGET", counter, "createdAt", "count")
local created = tonumber(fields[1])
local count = tonumber(fields[2])

if created == nil or count == nil then
  redis.call("HSET", counter, "createdAt", ARGV[1], "count", "1")
  return {1, 1, now, 0, 0}
end

if now - created >= window then
  redis.call("HSET", counter, "createdAt", ARGV[1], "count", "1")
  redis.call("DEL", marker)
  return {1, 1, now, 0, 0}
end

if count < limit then
  count = redis.call("HINCRBY", counter, "count", 1)
  return {1, count, created, 0, 0}
end

local blocked = tonumber(redis.call("GET", marker))
if blocked == nil then
  redis.call("SET", marker, ARGV[1], "PX", ARGV[2])
  return {0, count, created, now, 1}
end

return {0, count, created, blocked, 0}
`)

// failureScript counts one failed login and, when the new count is a multiple
// of the threshold, writes the block for that tier in the same step.
//
// KEYS[1] = failure counter
// KEYS[2] = block key
// ARGV[1] = threshold
// ARGV[2..] = block schedule (ms), non-decreasing
//
// Returns {count, blockMs}; blockMs is 0 when no block was written.
var failureScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local threshold = tonumber(ARGV[1])
if count % threshold ~= 0 then
  return {count, 0}
end

local tiers = #ARGV - 1
local tier = math.floor(count / threshold)
if tier > tiers then
  tier = tiers
end
local block = ARGV[tier + 1]
redis.call("SET", KEYS[2], "1", "PX", block)
return {count, tonumber(block)}
`)
