package wire

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jumpgo/internal/errkind"
)

func newLoopback(t *testing.T) (*Queue, *Queue) {
	t.Helper()
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	// q1 writes to w1, reads from r2; q2 writes to w2, reads from r1.
	q1 := New(r2, w1, nil)
	q2 := New(r1, w2, nil)
	return q1, q2
}

func TestPutGetRoundTrip(t *testing.T) {
	q1, q2 := newLoopback(t)
	defer q1.Close()
	defer q2.Close()

	type payload struct {
		Name string `json:"name"`
		N    int    `json:"n"`
	}
	want := payload{Name: "ada", N: 7}

	require.NoError(t, q1.Put(want, true, time.Second))

	var got payload
	require.NoError(t, q2.Get(&got, true, time.Second))
	require.Equal(t, want, got)
}

func TestGetOrderPreserved(t *testing.T) {
	q1, q2 := newLoopback(t)
	defer q1.Close()
	defer q2.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, q1.Put(i, true, time.Second))
	}
	for i := 0; i < 5; i++ {
		var got int
		require.NoError(t, q2.Get(&got, true, time.Second))
		require.Equal(t, i, got)
	}
}

func TestGetTimeout(t *testing.T) {
	q1, q2 := newLoopback(t)
	defer q1.Close()
	defer q2.Close()

	var got any
	err := q2.Get(&got, true, 30*time.Millisecond)
	require.Error(t, err)
	require.True(t, errkind.Is(err, errkind.KindTimeout))
}

func TestGetNonBlockingWouldBlock(t *testing.T) {
	q1, q2 := newLoopback(t)
	defer q1.Close()
	defer q2.Close()

	var got any
	err := q2.Get(&got, false, 0)
	require.Error(t, err)
	require.True(t, errkind.Is(err, errkind.KindWouldBlock))
}

func TestCloseSurfacesClosedOnGet(t *testing.T) {
	q1, q2 := newLoopback(t)
	defer q2.Close()

	require.NoError(t, q1.Close())

	var got any
	err := q2.Get(&got, true, time.Second)
	require.Error(t, err)
	require.True(t, errkind.Is(err, errkind.KindClosed))
}
