package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/domain"
)

const (
	profileKeyPrefix     = "ent:user:"   // Hash per profile: ent:user:{uid}:profile, one JSON value per field
	profileChannelPrefix = "ent:events:" // Pub/Sub channel for profile changes: ent:events:{uid}
	plansKey             = "ent:plans"   // Hash: plan id -> JSON plan definition
	maxTxRetries         = 5
)

// RedisStore keeps profiles and plans in Redis and pushes changes over
// Pub/Sub. Used for local development and tests.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) GetProfile(ctx context.Context, uid string) (domain.UserProfile, error) {
	fields, err := s.client.HGetAll(ctx, s.profileKey(uid)).Result()
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	if len(fields) == 0 {
		return domain.UserProfile{}, domain.ErrProfileNotFound
	}
	return decodeFields(fields)
}

func (s *RedisStore) CreateProfile(ctx context.Context, uid string, p domain.UserProfile) error {
	values, err := encodeFields(profileFields(p))
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.profileKey(uid), values).Err(); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	s.notify(ctx, uid)
	return nil
}

// UpdateProfile writes only the given fields.
func (s *RedisStore) UpdateProfile(ctx context.Context, uid string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	values, err := encodeFields(updates)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.profileKey(uid), values).Err(); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	s.notify(ctx, uid)
	return nil
}

// DeductCredit atomically takes one credit. Returns the remaining balance.
func (s *RedisStore) DeductCredit(ctx context.Context, uid string) (int, error) {
	return s.decrement(ctx, uid, domain.FieldCredits, domain.ErrNoCredits)
}

// SpendUnlockCredit atomically takes one unlock credit.
func (s *RedisStore) SpendUnlockCredit(ctx context.Context, uid string) (int, error) {
	return s.decrement(ctx, uid, domain.FieldUnlockCredits, domain.ErrNoUnlockCredits)
}

func (s *RedisStore) decrement(ctx context.Context, uid, field string, empty error) (int, error) {
	key := s.profileKey(uid)
	var remaining int

	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, field).Result()
		if errors.Is(err, redis.Nil) {
			exists, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if exists == 0 {
				return domain.ErrProfileNotFound
			}
			raw = "0"
		} else if err != nil {
			return err
		}

		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("field %s is not a number: %w", field, err)
		}
		if n <= 0 {
			return empty
		}
		remaining = n - 1

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, strconv.Itoa(remaining))
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, err
		}
		s.notify(ctx, uid)
		return remaining, nil
	}
	return 0, fmt.Errorf("failed to update %s: too much contention", field)
}

// Plans returns every stored plan definition.
func (s *RedisStore) Plans(ctx context.Context) (domain.Plans, error) {
	raw, err := s.client.HGetAll(ctx, plansKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get plans: %w", err)
	}

	plans := make(domain.Plans, len(raw))
	for id, data := range raw {
		var p domain.PlanDefinition
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan %s: %w", id, err)
		}
		if p.ID == "" {
			p.ID = id
		}
		plans[id] = p
	}
	return plans, nil
}

// SeedPlans stores plans that do not exist yet.
func (s *RedisStore) SeedPlans(ctx context.Context, plans domain.Plans) error {
	pipe := s.client.Pipeline()
	for id, p := range plans {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal plan %s: %w", id, err)
		}
		pipe.HSetNX(ctx, plansKey, id, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed plans: %w", err)
	}
	return nil
}

// Watch calls fn with the fresh profile after every change until ctx is
// done.
func (s *RedisStore) Watch(ctx context.Context, uid string, fn func(domain.UserProfile)) error {
	sub := s.client.Subscribe(ctx, s.channel(uid))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			p, err := s.GetProfile(ctx, uid)
			if err != nil {
				continue
			}
			fn(p)
		}
	}
}

func (s *RedisStore) notify(ctx context.Context, uid string) {
	s.client.Publish(ctx, s.channel(uid), "changed")
}

func (s *RedisStore) profileKey(uid string) string {
	return profileKeyPrefix + uid + ":profile"
}

func (s *RedisStore) channel(uid string) string {
	return profileChannelPrefix + uid
}

func profileFields(p domain.UserProfile) map[string]any {
	features := p.Features
	if features == nil {
		features = []string{}
	}
	return map[string]any{
		domain.FieldCredits:        p.Credits,
		domain.FieldUnlockCredits:  p.UnlockCredits,
		domain.FieldPlan:           p.Plan,
		domain.FieldPlanExpiry:     p.PlanExpiry,
		domain.FieldLastRefillDate: p.LastRefillDate,
		domain.FieldFeatures:       features,
		domain.FieldBanned:         p.Banned,
	}
}

func encodeFields(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal field %s: %w", k, err)
		}
		out[k] = string(b)
	}
	return out, nil
}

func decodeFields(fields map[string]string) (domain.UserProfile, error) {
	raw := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		raw[k] = json.RawMessage(v)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("failed to encode profile: %w", err)
	}
	var p domain.UserProfile
	if err := json.Unmarshal(b, &p); err != nil {
		return domain.UserProfile{}, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return p, nil
}
