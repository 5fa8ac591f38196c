package redis

import "github.com/redis/go-redis/v9"

// fixedWindowHit increments KEYS[1] and, on the first hit of a window, sets
// its expiry to ARGV[1] milliseconds. Returns the new count.
var fixedWindowHit = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// compareAndDelete deletes KEYS[1] when it equals ARGV[1]. Returns the
// number of keys removed.
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)
