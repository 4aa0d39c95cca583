package httpx

import (
	"context"

	kafkax "github.com/ariefcatur/chulbuli-jewels.git/internal/kafka"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/orders"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/telemetry"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// Events publishes domain events after the database work has committed. A nil Pub disables
// publishing; failures are logged and never change the response.
type Events struct {
	Pub     Publisher
	Service string
	Log     zerolog.Logger
}

func (e *Events) emit(ctx context.Context, topic, eventType, entityID string, payload any) {
	if e == nil || e.Pub == nil {
		return
	}
	traceID := telemetry.TraceID(ctx)
	if traceID == "" {
		traceID = middleware.GetReqID(ctx)
	}
	env, err := orders.NewEnvelope(eventType, e.Service, traceID, entityID, payload)
	if err != nil {
		e.Log.Error().Err(err).Str("event_type", eventType).Str("entity_id", entityID).Msg("encode event")
		return
	}
	e.Pub.Publish(topic, orders.PartitionKey(entityID), kafkax.MustMarshal(env),
		kafkax.EventHeaders(eventType, env.EventVersion)...)
}
