package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestWithRequestIDTagsLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	ctx := WithRequestID(context.Background(), "req-42")
	FromContext(ctx).Info().Msg("hello")

	if RequestID(ctx) != "req-42" {
		t.Fatalf("expected req-42, got %s", RequestID(ctx))
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"request_id":"req-42"`)) {
		t.Fatalf("log line missing request id: %s", buf.String())
	}
}

func TestRequestIDDefault(t *testing.T) {
	if RequestID(context.Background()) != "unknown" {
		t.Fatal("expected unknown for empty context")
	}
}
