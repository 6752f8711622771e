package results

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"cpicli/internal/config"
	apperrors "cpicli/internal/errors"
	"cpicli/internal/table"
)

// RedisStore keeps records in a sorted set scored by report day. Members are
// the JSON encoded records behind a computation time prefix.
type RedisStore struct {
	rdb        *redis.Client
	key        string
	maxHistory int
	logger     *slog.Logger
}

// NewRedisStore connects and pings the server
func NewRedisStore(ctx context.Context, cfg config.ResultsConfig, logger *slog.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, apperrors.NewNetworkError("redis ping", err).WithContext("addr", cfg.RedisAddr)
	}

	logger.InfoContext(ctx, "connected to redis results store",
		slog.String("addr", cfg.RedisAddr),
		slog.String("key", cfg.Key))
	return &RedisStore{
		rdb:        rdb,
		key:        cfg.Key,
		maxHistory: cfg.MaxHistory,
		logger:     logger,
	}, nil
}

// score is the report day number. Records sharing a report day get the same
// score and are ordered by member.
func score(rec Record) (float64, error) {
	d, err := table.ParseDate(rec.ReportDate)
	if err != nil {
		return 0, err
	}
	return float64(d.Unix() / 86400), nil
}

// memberSep separates the computation time prefix from the JSON record
const memberSep = "|"

// encodeMember prefixes the JSON record with the zero-padded computation time
// in nanoseconds. Redis orders equal scores lexicographically, so a later
// computation of the same report day ranks higher.
func encodeMember(rec Record) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	var nanos int64
	if rec.ComputedAt.After(time.Unix(0, 0)) {
		nanos = rec.ComputedAt.UnixNano()
	}
	return fmt.Sprintf("%019d%s%s", nanos, memberSep, data), nil
}

func decodeMember(member string) (Record, error) {
	var rec Record
	if _, data, ok := strings.Cut(member, memberSep); ok && !strings.HasPrefix(member, "{") {
		member = data
	}
	err := json.Unmarshal([]byte(member), &rec)
	return rec, err
}

// Save implements Store
func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	member, err := encodeMember(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	sc, err := score(rec)
	if err != nil {
		return apperrors.NewAppValidationError("record report date: " + err.Error())
	}

	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, s.key, redis.Z{Score: sc, Member: member})
	if s.maxHistory > 0 {
		// drop the lowest scores beyond the limit
		pipe.ZRemRangeByRank(ctx, s.key, 0, int64(-s.maxHistory-1))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.NewStorageError("save record", err)
	}
	return nil
}

// Latest implements Store
func (s *RedisStore) Latest(ctx context.Context) (*Record, error) {
	recs, err := s.History(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNoRecords
	}
	return &recs[0], nil
}

// History implements Store
func (s *RedisStore) History(ctx context.Context, limit int) ([]Record, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	members, err := s.rdb.ZRevRange(ctx, s.key, 0, stop).Result()
	if err != nil {
		return nil, apperrors.NewStorageError("read history", err)
	}

	out := make([]Record, 0, len(members))
	for _, m := range members {
		rec, err := decodeMember(m)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping undecodable history entry", slog.String("error", err.Error()))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close implements Store
func (s *RedisStore) Close() error { return s.rdb.Close() }

// Open builds the store selected by cfg.Kind
func Open(ctx context.Context, cfg config.ResultsConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Kind {
	case config.ResultsMemory, "":
		return NewMemoryStore(cfg.MaxHistory), nil
	case config.ResultsRedis:
		return NewRedisStore(ctx, cfg, logger)
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unknown results store %q", cfg.Kind), nil)
	}
}
