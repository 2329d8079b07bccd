package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pyama86/slaffic-ticket/config"
	"github.com/pyama86/slaffic-ticket/domain/model"
	"github.com/redis/go-redis/v9"
)

const (
	redisTicketSetKey       = "tickets"
	redisDestinationKey     = "ticket:dest"
	redisAnnouncementKey    = "announcements"
	redisTicketKeyPrefix    = "ticket:"
	redisCounterKeyTemplate = "ticket:counter:%s:%s"
)

type Redis struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, cfg config.StoreConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect redis %s: %w", cfg.RedisAddr, err)
	}
	return &Redis{client: client}, nil
}

func ticketKey(id string) string {
	return redisTicketKeyPrefix + id
}

func destinationField(channelID, messageID string) string {
	return channelID + ":" + messageID
}

func (r *Redis) NextTicketID(ctx context.Context, prefix string, at time.Time) (string, error) {
	day := model.TicketDay(at)
	seq, err := r.client.Incr(ctx, fmt.Sprintf(redisCounterKeyTemplate, prefix, day)).Result()
	if err != nil {
		return "", fmt.Errorf("failed to increment counter %s/%s: %w", prefix, day, err)
	}
	return model.FormatTicketID(prefix, day, int(seq)), nil
}

func writeTicket(ctx context.Context, pipe redis.Pipeliner, t *model.Ticket) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	pipe.Set(ctx, ticketKey(t.ID), data, 0)
	pipe.SAdd(ctx, redisTicketSetKey, t.ID)
	if t.HasDestination() {
		pipe.HSet(ctx, redisDestinationKey, destinationField(t.DestChannelID, t.DestMessageID), t.ID)
	}
	return nil
}

func (r *Redis) SaveTicket(ctx context.Context, t *model.Ticket) error {
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now()
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return writeTicket(ctx, pipe, t)
	})
	return err
}

func decodeTicket(id string, raw []byte) (*model.Ticket, error) {
	var t model.Ticket
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("failed to decode ticket %s: %w", id, err)
	}
	return &t, nil
}

func (r *Redis) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	raw, err := r.client.Get(ctx, ticketKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ticketNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return decodeTicket(id, raw)
}

// UpdateTicket は WATCH したキーが書き換えられていたら読み直してやり直す
func (r *Redis) UpdateTicket(ctx context.Context, id string, mutate func(*model.Ticket) error) (*model.Ticket, error) {
	key := ticketKey(id)
	for i := 0; i < maxUpdateRetries; i++ {
		var updated *model.Ticket
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ticketNotFound(id)
			}
			if err != nil {
				return err
			}
			t, err := decodeTicket(id, raw)
			if err != nil {
				return err
			}
			if err := mutate(t); err != nil {
				return err
			}
			t.Version++
			t.UpdatedAt = time.Now()

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				return writeTicket(ctx, pipe, t)
			})
			if err != nil {
				return err
			}
			updated = t
			return nil
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("failed to update ticket %s: too many conflicts", id)
}

func (r *Redis) ListOpenTickets(ctx context.Context, filter model.TicketFilter) ([]model.Ticket, error) {
	ids, err := r.client.SMembers(ctx, redisTicketSetKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, ticketKey(id))
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var tickets []model.Ticket
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		t, err := decodeTicket(ids[i], []byte(raw))
		if err != nil {
			return nil, err
		}
		if filter.Match(t) {
			tickets = append(tickets, *t)
		}
	}
	sortTickets(tickets)
	return tickets, nil
}

func (r *Redis) FindTicketByDestination(ctx context.Context, channelID, messageID string) (*model.Ticket, error) {
	id, err := r.client.HGet(ctx, redisDestinationKey, destinationField(channelID, messageID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ticketNotFound(channelID + "/" + messageID)
	}
	if err != nil {
		return nil, err
	}
	return r.GetTicket(ctx, id)
}

func (r *Redis) SaveAnnouncement(ctx context.Context, a *model.Announcement) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return r.client.LPush(ctx, redisAnnouncementKey, data).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
