package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestStartSpan_NoopBeforeInit(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test", attribute.String("user_id", "u1"))
	defer span.End()
	assert.NotNil(t, ctx)
}

func TestOptionalInstrumentsAreNilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		AddInt(context.Background(), nil, 1)
		RecordLatency(context.Background(), nil, time.Second)
	})
}
