package audit

import (
	"context"
	"encoding/json"
	"fmt"

	kafkax "github.com/ariefcatur/chulbuli-jewels.git/internal/kafka"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/orders"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// Topics the audit consumer subscribes to.
var Topics = []string{orders.TopicOrderPlaced, orders.TopicOrderStatusChanged, orders.TopicProductChanged, orders.TopicReviewChanged}

type Writer interface {
	Insert(ctx context.Context, e Entry) (bool, error)
}

type Service struct {
	Repo        Writer
	Redis       redis.Cmdable
	ServiceName string
	Log         zerolog.Logger
}

// HandleMessage is installed as the consumer handler. Returning an error leaves the offset
// uncommitted so the event is redelivered.
func (s *Service) HandleMessage(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// a malformed message will never decode; committing it avoids a poison loop
		s.Log.Error().Err(err).Str("topic", m.Topic).Int64("offset", m.Offset).Msg("drop undecodable event")
		return nil
	}

	entry, ok, err := ToEntry(env)
	if err != nil {
		s.Log.Error().Err(err).Str("event_id", env.EventID).Str("event_type", env.EventType).Msg("drop undecodable payload")
		return nil
	}
	if !ok {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	fresh, err := s.Redis.SetNX(ctx, dkey, "1", redisx.TTLDedup).Result()
	if err != nil {
		// the unique event_id column still guards against duplicates
		s.Log.Warn().Err(err).Str("event_id", env.EventID).Msg("dedup check failed")
		fresh = true
	}
	if !fresh {
		return nil
	}

	inserted, err := s.Repo.Insert(ctx, entry)
	if err != nil {
		_ = s.Redis.Del(context.WithoutCancel(ctx), dkey).Err()
		return err
	}

	ev := s.Log.Info()
	if entry.Level == LevelWarning {
		ev = s.Log.Warn()
	}
	ev.Str("event_id", entry.EventID).
		Str("action", string(entry.Action)).
		Str("resource_id", entry.ResourceID).
		Bool("inserted", inserted).
		Msg("audit")
	return nil
}

// ToEntry maps an envelope to its audit row. ok is false for event types that are not audited.
func ToEntry(env orders.Envelope) (e Entry, ok bool, err error) {
	e = Entry{
		EventID:    env.EventID,
		Level:      LevelInfo,
		ResourceID: env.CorrelationID,
		Metadata:   env.Payload,
		OccurredAt: env.OccurredAt,
	}

	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return Entry{}, false, err
		}
		e.Action = ActionOrderPlaced
		e.ResourceID = p.OrderID
		e.UserID = optional(p.UserID)

	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return Entry{}, false, err
		}
		e.Action = ActionAdminOrderUpdate
		e.ResourceID = p.OrderID
		e.UserID = optional(p.ActorID)

	case orders.EventProductCreated, orders.EventProductUpdated, orders.EventProductDeleted:
		p, err := kafkax.UnwrapPayload[orders.ProductChangedPayload](env.Payload)
		if err != nil {
			return Entry{}, false, err
		}
		e.ResourceID = p.ProductID
		e.UserID = optional(p.ActorID)
		switch env.EventType {
		case orders.EventProductCreated:
			e.Action = ActionAdminProductCreate
		case orders.EventProductUpdated:
			e.Action = ActionAdminProductUpdate
		default:
			e.Action = ActionAdminProductDelete
			e.Level = LevelWarning
		}

	case orders.EventReviewSubmitted, orders.EventReviewApproved, orders.EventReviewRejected, orders.EventReviewDeleted:
		p, err := kafkax.UnwrapPayload[orders.ReviewChangedPayload](env.Payload)
		if err != nil {
			return Entry{}, false, err
		}
		e.ResourceID = p.ReviewID
		switch env.EventType {
		case orders.EventReviewSubmitted:
			e.Action = ActionReviewSubmit
			e.UserID = optional(p.UserID)
		case orders.EventReviewApproved:
			e.Action = ActionAdminReviewApprove
			e.UserID = optional(p.ActorID)
		case orders.EventReviewRejected:
			e.Action = ActionAdminReviewReject
			e.UserID = optional(p.ActorID)
		default:
			e.Action = ActionAdminReviewDelete
			e.Level = LevelWarning
			e.UserID = optional(p.ActorID)
		}

	default:
		return Entry{}, false, nil
	}
	return e, true, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
