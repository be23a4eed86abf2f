package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// redisRetention is how long a record key outlives its ExpiresAt before Redis
// evicts it on its own. The sweeper normally deletes it first.
const redisRetention = 24 * time.Hour

// RedisStore keeps verification records in Redis:
//
//	<prefix>rec:<id>         JSON-encoded Record
//	<prefix>addr:<address>   set of record ids issued to the address
//	<prefix>expiry           sorted set of record ids scored by ExpiresAt (unix µs)
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a RedisStore. prefix namespaces every key; an empty
// prefix defaults to "otp:".
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "otp:"
	}
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *RedisStore) recKey(id string) string       { return s.prefix + "rec:" + id }
func (s *RedisStore) addrKey(address string) string { return s.prefix + "addr:" + address }
func (s *RedisStore) expiryKey() string             { return s.prefix + "expiry" }

// DeleteAllFor implements Store.
func (s *RedisStore) DeleteAllFor(ctx context.Context, address string) error {
	ids, err := s.rdb.SMembers(ctx, s.addrKey(address)).Result()
	if err != nil {
		return fmt.Errorf("list otp records: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range ids {
			p.Del(ctx, s.recKey(id))
			p.ZRem(ctx, s.expiryKey(), id)
		}
		p.Del(ctx, s.addrKey(address))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete otp records: %w", err)
	}
	return nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, r *Record) error {
	if stampForSave(r, s.now()) {
		return s.insert(ctx, r)
	}

	key := s.recKey(r.ID.String())
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		var existing Record
		if err := json.Unmarshal(raw, &existing); err != nil {
			return fmt.Errorf("decode otp record: %w", err)
		}
		if existing.Consumed {
			r.Consumed = true
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode otp record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, s.ttl(r))
			p.ZAdd(ctx, s.expiryKey(), &redis.Z{Score: expiryScore(r.ExpiresAt), Member: r.ID.String()})
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update otp record: %w", err)
	}
	return nil
}

func (s *RedisStore) insert(ctx context.Context, r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode otp record: %w", err)
	}
	id := r.ID.String()
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.recKey(id), data, s.ttl(r))
		p.SAdd(ctx, s.addrKey(r.Address), id)
		p.ZAdd(ctx, s.expiryKey(), &redis.Z{Score: expiryScore(r.ExpiresAt), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert otp record: %w", err)
	}
	return nil
}

// FindByAddressAndCode implements Store.
func (s *RedisStore) FindByAddressAndCode(ctx context.Context, address, code string) (*Record, error) {
	ids, err := s.rdb.SMembers(ctx, s.addrKey(address)).Result()
	if err != nil {
		return nil, fmt.Errorf("list otp records: %w", err)
	}

	var found *Record
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, s.recKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("get otp record: %w", err)
		}
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode otp record: %w", err)
		}
		if r.Code != code {
			continue
		}
		if found == nil || r.IssuedAt.After(found.IssuedAt) {
			rec := r
			found = &rec
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// DeleteExpiredBefore implements Store.
func (s *RedisStore) DeleteExpiredBefore(ctx context.Context, ts time.Time) (int64, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(ts.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list expired otp records: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	addrs := make(map[string]string, len(ids))
	for _, id := range ids {
		addr, ok, err := s.addressOf(ctx, id)
		if err != nil {
			return 0, err
		}
		if ok {
			addrs[id] = addr
		}
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range ids {
			if addr, ok := addrs[id]; ok {
				p.SRem(ctx, s.addrKey(addr), id)
			}
			p.Del(ctx, s.recKey(id))
			p.ZRem(ctx, s.expiryKey(), id)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired otp records: %w", err)
	}
	return int64(len(ids)), nil
}

// addressOf reads the address of a stored record so its id can be removed
// from the per-address set. ok is false when the record key is already gone.
func (s *RedisStore) addressOf(ctx context.Context, id string) (addr string, ok bool, err error) {
	raw, err := s.rdb.Get(ctx, s.recKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get expired otp record %s: %w", id, err)
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", false, fmt.Errorf("decode expired otp record %s: %w", id, err)
	}
	return r.Address, true, nil
}

func (s *RedisStore) ttl(r *Record) time.Duration {
	ttl := r.ExpiresAt.Sub(s.now()) + redisRetention
	if ttl <= 0 {
		return redisRetention
	}
	return ttl
}

func expiryScore(t time.Time) float64 {
	return float64(t.UnixMicro())
}
