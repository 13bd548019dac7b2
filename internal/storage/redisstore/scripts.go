package redisstore

import "github.com/redis/go-redis/v9"

// KEYS: token, session, active zset, mac set, user zset, stats
// ARGV: id, token, user, mac, ip, gateway, now(ms)
const insertSessionScript = `
if redis.call("SETNX", KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[2],
  "id", ARGV[1], "token", ARGV[2], "user_id", ARGV[3], "mac", ARGV[4],
  "ip", ARGV[5], "gateway_id", ARGV[6], "active", "1",
  "in", 0, "out", 0, "start", ARGV[7], "last", ARGV[7])
redis.call("ZADD", KEYS[3], ARGV[7], ARGV[1])
redis.call("SADD", KEYS[4], ARGV[1])
redis.call("ZADD", KEYS[5], ARGV[7], ARGV[1])
redis.call("HINCRBY", KEYS[6], "total_sessions", 1)
return 1
`

var insertSessionLua = redis.NewScript(insertSessionScript)

// KEYS: session, active zset
// ARGV: id, ip, mac, now(ms), mac key prefix
const touchSessionScript = `
if redis.call("HGET", KEYS[1], "active") ~= "1" then
  return 0
end
local now = tonumber(ARGV[4])
if now > tonumber(redis.call("HGET", KEYS[1], "last")) then
  redis.call("HSET", KEYS[1], "last", ARGV[4])
  redis.call("ZADD", KEYS[2], ARGV[4], ARGV[1])
end
if ARGV[2] ~= "" then
  redis.call("HSET", KEYS[1], "ip", ARGV[2])
end
if ARGV[3] ~= "" then
  local old = redis.call("HGET", KEYS[1], "mac")
  if old ~= ARGV[3] then
    redis.call("SREM", ARGV[5] .. old, ARGV[1])
    redis.call("SADD", ARGV[5] .. ARGV[3], ARGV[1])
    redis.call("HSET", KEYS[1], "mac", ARGV[3])
  end
end
return 1
`

var touchSessionLua = redis.NewScript(touchSessionScript)

// KEYS: session, active zset, stats
// ARGV: id, now(ms), cutoff(ms) or "" to skip the idle check, mac key prefix
const deactivateSessionScript = `
if redis.call("HGET", KEYS[1], "active") ~= "1" then
  return 0
end
if ARGV[3] ~= "" then
  if tonumber(redis.call("HGET", KEYS[1], "last")) >= tonumber(ARGV[3]) then
    return 0
  end
end
redis.call("HSET", KEYS[1], "active", "0", "end", ARGV[2])
redis.call("ZREM", KEYS[2], ARGV[1])
redis.call("SREM", ARGV[4] .. redis.call("HGET", KEYS[1], "mac"), ARGV[1])
local started = tonumber(redis.call("HGET", KEYS[1], "start"))
redis.call("HINCRBY", KEYS[3], "ended_count", 1)
redis.call("HINCRBY", KEYS[3], "ended_duration_ms", tonumber(ARGV[2]) - started)
return 1
`

var deactivateSessionLua = redis.NewScript(deactivateSessionScript)

// KEYS: session, active zset, bucket, user index, gateway index, bucket index, stats
// ARGV: id, incoming, outgoing, cumulative("1"|"0"), now(ms), hour(unix s),
//       user index member, gateway index member, bucket index member
const applyUsageScript = `
if redis.call("HGET", KEYS[1], "active") ~= "1" then
  return {0, 0, 0}
end
local din = tonumber(ARGV[2])
local dout = tonumber(ARGV[3])
if ARGV[4] == "1" then
  din = math.max(din - tonumber(redis.call("HGET", KEYS[1], "in")), 0)
  dout = math.max(dout - tonumber(redis.call("HGET", KEYS[1], "out")), 0)
end
local now = tonumber(ARGV[5])
if now > tonumber(redis.call("HGET", KEYS[1], "last")) then
  redis.call("HSET", KEYS[1], "last", ARGV[5])
  redis.call("ZADD", KEYS[2], ARGV[5], ARGV[1])
end
if din > 0 or dout > 0 then
  redis.call("HINCRBY", KEYS[1], "in", din)
  redis.call("HINCRBY", KEYS[1], "out", dout)
  redis.call("HINCRBY", KEYS[3], "in", din)
  redis.call("HINCRBY", KEYS[3], "out", dout)
  redis.call("ZADD", KEYS[4], ARGV[6], ARGV[7])
  redis.call("ZADD", KEYS[5], ARGV[6], ARGV[8])
  redis.call("ZADD", KEYS[6], ARGV[6], ARGV[9])
  redis.call("HINCRBY", KEYS[7], "total_in", din)
  redis.call("HINCRBY", KEYS[7], "total_out", dout)
end
return {1, din, dout}
`

var applyUsageLua = redis.NewScript(applyUsageScript)

// KEYS: username index, user
// ARGV: id, username, email, password hash, active("1"|"0"), created(ms)
const createUserScript = `
if redis.call("SETNX", KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[2],
  "id", ARGV[1], "username", ARGV[2], "email", ARGV[3],
  "password_hash", ARGV[4], "active", ARGV[5], "created", ARGV[6])
return 1
`

var createUserLua = redis.NewScript(createUserScript)
