package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var submitted = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewTaskMessage_Args(t *testing.T) {
	msg, err := NewTaskMessage("id-1", "run_point_coverage",
		[]any{`{"id":0}`, []string{`{"a":1}`, `{"b":2}`}, "2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z"},
		submitted, time.Hour)
	require.NoError(t, err)
	require.NoError(t, msg.CheckArity(4))
	require.Error(t, msg.CheckArity(2))

	point, err := msg.StringArg(0)
	require.NoError(t, err)
	require.Equal(t, `{"id":0}`, point)

	sats, err := msg.StringListArg(1)
	require.NoError(t, err)
	require.Equal(t, []string{`{"a":1}`, `{"b":2}`}, sats)

	_, err = msg.StringArg(1)
	require.ErrorIs(t, err, ErrArgument)
	_, err = msg.StringListArg(0)
	require.ErrorIs(t, err, ErrArgument)
	_, err = msg.StringArg(9)
	require.ErrorIs(t, err, ErrArgument)

	require.NotNil(t, msg.ExpiresAt)
	require.False(t, msg.Expired(submitted.Add(59*time.Minute)))
	require.True(t, msg.Expired(submitted.Add(61*time.Minute)))
}

func TestNewTaskMessage_RejectsComplexArgs(t *testing.T) {
	_, err := NewTaskMessage("id", "t", []any{map[string]any{"x": 1}}, submitted, 0)
	require.ErrorIs(t, err, ErrArgument)

	_, err = NewTaskMessage("id", "t", []any{42}, submitted, 0)
	require.ErrorIs(t, err, ErrArgument)
}

func TestNewTaskMessage_NilListIsEmpty(t *testing.T) {
	msg, err := NewTaskMessage("id", "t", []any{[]string(nil)}, submitted, 0)
	require.NoError(t, err)
	require.Nil(t, msg.ExpiresAt)
	require.False(t, msg.Expired(submitted.Add(1000*time.Hour)))

	list, err := msg.StringListArg(0)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestFingerprint(t *testing.T) {
	a, err := NewTaskMessage("id-1", "t", []any{"x", "y"}, submitted, 0)
	require.NoError(t, err)
	b, err := NewTaskMessage("id-2", "t", []any{"x", "y"}, submitted.Add(time.Hour), 0)
	require.NoError(t, err)
	c, err := NewTaskMessage("id-3", "t", []any{"xy"}, submitted, 0)
	require.NoError(t, err)
	d, err := NewTaskMessage("id-4", "u", []any{"x", "y"}, submitted, 0)
	require.NoError(t, err)

	require.Len(t, a.Fingerprint, 32)
	require.Equal(t, a.Fingerprint, b.Fingerprint)
	require.NotEqual(t, a.Fingerprint, c.Fingerprint)
	require.NotEqual(t, a.Fingerprint, d.Fingerprint)
}

func TestTaskMessage_Codec(t *testing.T) {
	msg, err := NewTaskMessage("id-1", "run_grid_coverage", []any{"points", "cells"}, submitted, time.Minute)
	require.NoError(t, err)

	data, err := EncodeTaskMessage(msg)
	require.NoError(t, err)
	back, err := DecodeTaskMessage(data)
	require.NoError(t, err)
	require.Equal(t, msg.ID, back.ID)
	require.Equal(t, msg.Fingerprint, back.Fingerprint)
	require.True(t, msg.ExpiresAt.Equal(*back.ExpiresAt))
	require.Equal(t, []json.RawMessage{json.RawMessage(`"points"`), json.RawMessage(`"cells"`)}, back.Args)

	_, err = DecodeTaskMessage([]byte(`{"task":"x"}`))
	require.Error(t, err)
	_, err = DecodeTaskMessage([]byte(`{"id":"x"}`))
	require.Error(t, err)
	_, err = DecodeTaskMessage([]byte(`nope`))
	require.Error(t, err)
}

func TestTaskResult(t *testing.T) {
	msg, err := NewTaskMessage("id-1", "t", nil, submitted, 0)
	require.NoError(t, err)

	r := NewResult(msg, StatusSuccess).Done(submitted)
	r.Result = "payload"
	require.True(t, r.Status.Ready())
	require.False(t, StatusStarted.Ready())
	require.False(t, StatusPending.Ready())
	require.True(t, StatusRevoked.Ready())

	data, err := EncodeTaskResult(r)
	require.NoError(t, err)
	back, err := DecodeTaskResult(data)
	require.NoError(t, err)
	require.Equal(t, r, back)
}
