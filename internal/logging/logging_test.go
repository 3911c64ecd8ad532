package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))

	id := GenerateRequestID()
	assert.Len(t, id, 8)
	assert.NotEqual(t, id, GenerateRequestID())

	assert.Equal(t, id, GetRequestID(WithRequestID(ctx, id)))
}

func TestNew(t *testing.T) {
	t.Run("json respects level", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(&buf, "warn", "json")
		require.NoError(t, err)

		log.Info("hidden")
		log.Warn("shown", Operation("list files"), UserID("u1"))

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "shown", line["msg"])
		assert.Equal(t, "list files", line[KeyOperation])
		assert.Equal(t, "u1", line[KeyUserID])
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		_, err := New(nil, "loud", "text")
		assert.Error(t, err)
		_, err = New(nil, "info", "xml")
		assert.Error(t, err)
	})
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base, err := New(&buf, "info", "text")
	require.NoError(t, err)

	FromContext(WithRequestID(context.Background(), "abcd1234"), base).Info("hello")
	assert.Contains(t, buf.String(), "request_id=abcd1234")

	buf.Reset()
	WithComponent(base, "broker").Info("hello", Err(errors.New("boom")), Err(nil))
	assert.Contains(t, buf.String(), "component=broker")
	assert.Contains(t, buf.String(), "error=boom")
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "***", MaskToken("short"))
	assert.Equal(t, "...567890", MaskToken("ya29.abcdefghij1234567890"))
}
