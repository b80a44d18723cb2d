package rpcserver

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jumpgo/internal/wire"
)

func newLoopback(t *testing.T) (*wire.Queue, *wire.Queue) {
	t.Helper()
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	q1 := wire.New(r2, w1, nil)
	q2 := wire.New(r1, w2, nil)
	return q1, q2
}

func TestGreetWithDefaultParam(t *testing.T) {
	childQ, hostQ := newLoopback(t)
	defer childQ.Close()
	defer hostQ.Close()

	srv := New(childQ)
	greet := func(name string) (any, error) {
		if name == "" {
			name = "World"
		}
		return "Hello, " + name + "!", nil
	}
	require.NoError(t, srv.RegisterMethod("greet", greet, []ParamSpec{
		{Name: "name", Required: false, Default: "World"},
	}, "greets someone"))
	srv.Start()
	defer srv.Stop()

	require.NoError(t, hostQ.Put(Message{Command: "greet", Data: json.RawMessage(`{"name":"Ada"}`), RequestID: "r1"}, true, time.Second))

	var reply Message
	require.NoError(t, hostQ.Get(&reply, true, time.Second))
	require.Equal(t, "r1", reply.RequestID)
	var result string
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	require.Equal(t, "Hello, Ada!", result)
}

func TestAddTwoParams(t *testing.T) {
	childQ, hostQ := newLoopback(t)
	defer childQ.Close()
	defer hostQ.Close()

	srv := New(childQ)
	add := func(x, y int) (any, error) { return x + y, nil }
	require.NoError(t, srv.RegisterMethod("add", add, []ParamSpec{
		{Name: "x", Required: true},
		{Name: "y", Required: true},
	}, ""))
	srv.Start()
	defer srv.Stop()

	require.NoError(t, hostQ.Put(Message{Command: "add", Data: json.RawMessage(`{"x":2,"y":3}`), RequestID: "r2"}, true, time.Second))

	var reply Message
	require.NoError(t, hostQ.Get(&reply, true, time.Second))
	var result int
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	require.Equal(t, 5, result)
}

func TestUnknownCommandWithoutDefault(t *testing.T) {
	childQ, hostQ := newLoopback(t)
	defer childQ.Close()
	defer hostQ.Close()

	srv := New(childQ)
	srv.Start()
	defer srv.Stop()

	require.NoError(t, hostQ.Put(Message{Command: "nope", RequestID: "r3"}, true, time.Second))

	var reply Message
	require.NoError(t, hostQ.Get(&reply, true, time.Second))
	require.Equal(t, "r3", reply.RequestID)
	require.Equal(t, "Unknown command: nope", reply.Error)
}

func TestAutoRegisterExposesRawPayloadMethods(t *testing.T) {
	childQ, hostQ := newLoopback(t)
	defer childQ.Close()
	defer hostQ.Close()

	srv := New(childQ)
	srv.AutoRegister(calcService{})
	srv.Start()
	defer srv.Stop()

	require.NoError(t, hostQ.Put(Message{Command: "Double", Data: json.RawMessage(`5`), RequestID: "r4"}, true, time.Second))

	var reply Message
	require.NoError(t, hostQ.Get(&reply, true, time.Second))
	var result int
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	require.Equal(t, 10, result)
}

type calcService struct{}

func (calcService) Double(data json.RawMessage) (any, error) {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return n * 2, nil
}

func (calcService) internalOnly(data json.RawMessage) (any, error) {
	return nil, nil
}

func TestRequestTimeoutThenLaterReplyDropped(t *testing.T) {
	childQ, hostQ := newLoopback(t)
	defer childQ.Close()
	defer hostQ.Close()

	hostSrv := New(hostQ)
	hostSrv.Start()
	defer hostSrv.Stop()

	childSrv := New(childQ)
	childSrv.RegisterHandler("slow", func(ctx context.Context, data json.RawMessage, requestID string) (any, error) {
		time.Sleep(150 * time.Millisecond)
		return "late", nil
	})
	childSrv.RegisterHandler("add", func(ctx context.Context, data json.RawMessage, requestID string) (any, error) {
		return 2, nil
	})
	childSrv.Start()
	defer childSrv.Stop()

	_, err := hostSrv.Request(context.Background(), "slow", nil, 20*time.Millisecond)
	require.Error(t, err)

	time.Sleep(250 * time.Millisecond)

	raw, err := hostSrv.Request(context.Background(), "add", nil, time.Second)
	require.NoError(t, err)
	var n int
	require.NoError(t, json.Unmarshal(raw, &n))
	require.Equal(t, 2, n)
}
