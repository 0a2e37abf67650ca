package session

import (
	"testing"
	"time"

	"colorsnap/internal/chain"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *clock.Mock) {
	t.Helper()
	sim := chain.NewSimulator(1)
	mock := clock.NewMock()
	m := NewManager(func(addr common.Address) (chain.Gateway, error) {
		if addr == (common.Address{}) {
			return nil, chain.ErrUnknownSigner
		}
		return sim.As(addr), nil
	}, Config{}, Options{Clock: mock}, 10*time.Minute)
	t.Cleanup(m.CloseAll)
	return m, mock
}

func TestManagerConnectReusesSession(t *testing.T) {
	m, _ := newTestManager(t)

	a, err := m.Connect(player)
	require.NoError(t, err)
	b, err := m.Connect(player)
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Equal(t, 1, m.Len())

	_, err = m.Connect(common.Address{})
	require.ErrorIs(t, err, chain.ErrUnknownSigner)

	got, ok := m.Get(player)
	require.True(t, ok)
	require.Same(t, a, got)

	require.True(t, m.Disconnect(player))
	require.False(t, m.Disconnect(player))
	_, ok = m.Get(player)
	require.False(t, ok)
}

func TestManagerClosesIdleSessions(t *testing.T) {
	m, mock := newTestManager(t)

	other := common.HexToAddress("0x00000000000000000000000000000000000000c3")
	_, err := m.Connect(player)
	require.NoError(t, err)
	watched, err := m.Connect(other)
	require.NoError(t, err)
	_, cancel := watched.Subscribe()
	defer cancel()

	mock.Add(11 * time.Minute)
	m.cleanupIdle()

	_, ok := m.Get(player)
	require.False(t, ok, "idle session closed")
	_, ok = m.Get(other)
	require.True(t, ok, "subscribed session kept")
}

func TestManagerConnectDoesNotBlockOtherIdentities(t *testing.T) {
	sim := chain.NewSimulator(1)
	slow := common.HexToAddress("0x00000000000000000000000000000000000000d4")
	entered := make(chan struct{})
	release := make(chan struct{})

	m := NewManager(func(addr common.Address) (chain.Gateway, error) {
		if addr == slow {
			close(entered)
			<-release
		}
		return sim.As(addr), nil
	}, Config{}, Options{Clock: clock.NewMock()}, 0)
	t.Cleanup(m.CloseAll)

	done := make(chan *Session)
	go func() {
		s, err := m.Connect(slow)
		if err != nil {
			s = nil
		}
		done <- s
	}()
	<-entered

	fast := make(chan struct{})
	go func() {
		defer close(fast)
		_, _ = m.Connect(player)
		m.Get(player)
		m.Disconnect(player)
	}()
	select {
	case <-fast:
	case <-time.After(2 * time.Second):
		t.Fatal("registry blocked by a slow connect")
	}

	close(release)
	s := <-done
	require.NotNil(t, s)
	got, ok := m.Get(slow)
	require.True(t, ok)
	require.Same(t, s, got)
}

func TestManagerConcurrentConnectSharesSession(t *testing.T) {
	m, _ := newTestManager(t)

	const n = 8
	got := make(chan *Session, n)
	for range n {
		go func() {
			s, err := m.Connect(player)
			if err != nil {
				s = nil
			}
			got <- s
		}()
	}

	first := <-got
	require.NotNil(t, first)
	for range n - 1 {
		require.Same(t, first, <-got)
	}
	require.Equal(t, 1, m.Len())
}
