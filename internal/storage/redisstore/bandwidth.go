package redisstore

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"wifidog-auth/internal/common/database"
	"wifidog-auth/internal/models"
	"wifidog-auth/internal/storage"

	"github.com/redis/go-redis/v9"
)

const memberSep = "|"

// BandwidthRepository keeps hourly buckets as hashes, indexed by user, gateway and hour.
type BandwidthRepository struct {
	client   *database.RedisClient
	sessions *SessionRepository
	users    *UserRepository
}

func NewBandwidthRepository(client *database.RedisClient, users *UserRepository) *BandwidthRepository {
	return &BandwidthRepository{client: client, sessions: NewSessionRepository(client), users: users}
}

func (r *BandwidthRepository) bucketKey(userID, gatewayID string, hour int64) string {
	return r.client.Key("bw", userID, gatewayID, strconv.FormatInt(hour, 10))
}
func (r *BandwidthRepository) userIndex(userID string) string { return r.client.Key("bw", "user", userID) }
func (r *BandwidthRepository) gatewayIndex(gatewayID string) string {
	return r.client.Key("bw", "gateway", gatewayID)
}
func (r *BandwidthRepository) bucketIndex() string { return r.client.Key("bw", "buckets") }

func (r *BandwidthRepository) ApplyUsage(ctx context.Context, u storage.Usage) (storage.Applied, bool, error) {
	hour := models.HourOf(u.Now).Unix()
	hourStr := strconv.FormatInt(hour, 10)
	cumulative := "0"
	if u.Cumulative {
		cumulative = "1"
	}

	res, err := applyUsageLua.Run(ctx, r.client.Client,
		[]string{
			r.sessions.sessionKey(u.SessionID), r.sessions.activeKey(),
			r.bucketKey(u.UserID, u.GatewayID, hour),
			r.userIndex(u.UserID), r.gatewayIndex(u.GatewayID), r.bucketIndex(),
			r.sessions.statsKey(),
		},
		u.SessionID, u.Incoming, u.Outgoing, cumulative, ms(u.Now), hour,
		u.GatewayID+memberSep+hourStr,
		u.UserID+memberSep+hourStr,
		u.UserID+memberSep+u.GatewayID+memberSep+hourStr,
	).Int64Slice()
	if err != nil {
		return storage.Applied{}, false, wrap("apply usage", err)
	}
	if len(res) != 3 || res[0] == 0 {
		return storage.Applied{}, false, nil
	}
	return storage.Applied{Incoming: res[1], Outgoing: res[2]}, true, nil
}

// readBuckets fetches the hashes of the given bucket keys in one round trip.
func (r *BandwidthRepository) readBuckets(ctx context.Context, keys []string) ([]map[string]string, error) {
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err := r.client.Client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.HGetAll(ctx, k)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, len(cmds))
	for i, cmd := range cmds {
		out[i] = cmd.Val()
	}
	return out, nil
}

func (r *BandwidthRepository) Buckets(ctx context.Context, userID, gatewayID string, since time.Time) ([]models.BandwidthBucket, error) {
	members, err := r.client.Client.ZRangeByScore(ctx, r.userIndex(userID), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.Unix(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, wrap("list buckets", err)
	}

	var (
		hours []int64
		keys  []string
	)
	for _, m := range members {
		gw, hourStr, ok := strings.Cut(m, memberSep)
		if !ok || gw != gatewayID {
			continue
		}
		hour, _ := strconv.ParseInt(hourStr, 10, 64)
		hours = append(hours, hour)
		keys = append(keys, r.bucketKey(userID, gatewayID, hour))
	}
	if len(keys) == 0 {
		return nil, nil
	}

	hashes, err := r.readBuckets(ctx, keys)
	if err != nil {
		return nil, wrap("list buckets", err)
	}
	out := make([]models.BandwidthBucket, len(hashes))
	for i, h := range hashes {
		out[i] = models.BandwidthBucket{
			UserID:        userID,
			GatewayID:     gatewayID,
			HourStart:     time.Unix(hours[i], 0).UTC(),
			IncomingBytes: parseInt(h["in"]),
			OutgoingBytes: parseInt(h["out"]),
		}
	}
	return out, nil
}

func (r *BandwidthRepository) SumByUserPerDay(ctx context.Context, userID string, start, end time.Time) ([]models.DailyBandwidth, error) {
	members, err := r.client.Client.ZRangeByScore(ctx, r.userIndex(userID), &redis.ZRangeBy{
		Min: strconv.FormatInt(start.Unix(), 10),
		Max: "(" + strconv.FormatInt(end.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, wrap("user bandwidth", err)
	}
	keys := make([]string, 0, len(members))
	hours := make([]int64, 0, len(members))
	for _, m := range members {
		gw, hourStr, ok := strings.Cut(m, memberSep)
		if !ok {
			continue
		}
		hour, _ := strconv.ParseInt(hourStr, 10, 64)
		hours = append(hours, hour)
		keys = append(keys, r.bucketKey(userID, gw, hour))
	}
	daily, err := r.sumPerDay(ctx, keys, hours)
	if err != nil {
		return nil, wrap("user bandwidth", err)
	}
	return daily, nil
}

func (r *BandwidthRepository) SumByGatewayPerDay(ctx context.Context, gatewayID string, since time.Time) ([]models.DailyBandwidth, error) {
	members, err := r.client.Client.ZRangeByScore(ctx, r.gatewayIndex(gatewayID), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.Unix(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, wrap("gateway bandwidth", err)
	}
	keys := make([]string, 0, len(members))
	hours := make([]int64, 0, len(members))
	for _, m := range members {
		user, hourStr, ok := strings.Cut(m, memberSep)
		if !ok {
			continue
		}
		hour, _ := strconv.ParseInt(hourStr, 10, 64)
		hours = append(hours, hour)
		keys = append(keys, r.bucketKey(user, gatewayID, hour))
	}
	daily, err := r.sumPerDay(ctx, keys, hours)
	if err != nil {
		return nil, wrap("gateway bandwidth", err)
	}
	return daily, nil
}

func (r *BandwidthRepository) sumPerDay(ctx context.Context, keys []string, hours []int64) ([]models.DailyBandwidth, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	hashes, err := r.readBuckets(ctx, keys)
	if err != nil {
		return nil, err
	}

	byDay := make(map[time.Time]*models.DailyBandwidth)
	for i, h := range hashes {
		day := models.DayOf(time.Unix(hours[i], 0))
		d, ok := byDay[day]
		if !ok {
			d = &models.DailyBandwidth{Day: day}
			byDay[day] = d
		}
		d.IncomingBytes += parseInt(h["in"])
		d.OutgoingBytes += parseInt(h["out"])
	}

	out := make([]models.DailyBandwidth, 0, len(byDay))
	for _, d := range byDay {
		d.TotalBytes = d.IncomingBytes + d.OutgoingBytes
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (r *BandwidthRepository) TopUsers(ctx context.Context, since time.Time, limit int) ([]models.UserBandwidth, error) {
	members, err := r.client.Client.ZRangeByScore(ctx, r.bucketIndex(), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.Unix(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, wrap("top users", err)
	}

	keys := make([]string, 0, len(members))
	owners := make([]string, 0, len(members))
	for _, m := range members {
		parts := strings.Split(m, memberSep)
		if len(parts) != 3 {
			continue
		}
		hour, _ := strconv.ParseInt(parts[2], 10, 64)
		keys = append(keys, r.bucketKey(parts[0], parts[1], hour))
		owners = append(owners, parts[0])
	}
	if len(keys) == 0 {
		return nil, nil
	}
	hashes, err := r.readBuckets(ctx, keys)
	if err != nil {
		return nil, wrap("top users", err)
	}

	byUser := make(map[string]*models.UserBandwidth)
	for i, h := range hashes {
		u, ok := byUser[owners[i]]
		if !ok {
			u = &models.UserBandwidth{UserID: owners[i]}
			byUser[owners[i]] = u
		}
		u.IncomingBytes += parseInt(h["in"])
		u.OutgoingBytes += parseInt(h["out"])
	}

	out := make([]models.UserBandwidth, 0, len(byUser))
	for _, u := range byUser {
		u.TotalBytes = u.IncomingBytes + u.OutgoingBytes
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalBytes != out[j].TotalBytes {
			return out[i].TotalBytes > out[j].TotalBytes
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	for i := range out {
		if user, err := r.users.FindByID(ctx, out[i].UserID); err == nil {
			out[i].Username = user.Username
		}
	}
	return out, nil
}
