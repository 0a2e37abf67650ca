package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"colorsnap/internal/chain"
	"colorsnap/internal/config"
	"colorsnap/internal/domain"
	httpserver "colorsnap/internal/http"
	"colorsnap/internal/http/handlers"
	"colorsnap/internal/repository"
	"colorsnap/internal/service"
	"colorsnap/internal/session"
	"colorsnap/internal/txn"
	"colorsnap/internal/ws"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signerKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type stack struct {
	srv  *httptest.Server
	sim  *chain.Simulator
	addr common.Address
	db   bool
}

// newStack serves the full route table over a simulator. The poll interval
// is long so every read after the first is driven by settle refetches.
func newStack(t *testing.T, withDB bool) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := map[string]string{
		"CHAIN_MODE":  string(chain.ModeSim),
		"JWT_SECRET":  "e2e-secret",
		"SIGNER_KEYS": signerKey,
	}
	cfg, err := config.FromEnv(func(k string) string { return env[k] })
	require.NoError(t, err)
	service.InitJWT(cfg.JWTSecret)

	keys, err := chain.ParseKeyRing(cfg.SignerKeys)
	require.NoError(t, err)
	key, err := crypto.HexToECDSA(signerKey)
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	sim := chain.NewSimulator(11)
	factory := func(a common.Address) (chain.Gateway, error) {
		if !keys.Has(a) {
			return nil, fmt.Errorf("%s: %w", a.Hex(), chain.ErrUnknownSigner)
		}
		return sim.As(a), nil
	}

	opts := session.Options{}
	var (
		txRepo   *repository.TransactionRepository
		gameRepo *repository.GameRepository
	)
	if withDB {
		pool := openDB(t)
		txRepo = repository.NewTransactionRepository(pool)
		gameRepo = repository.NewGameRepository(pool)
		opts.Journal = &session.RepoJournal{Txs: txRepo, Games: gameRepo}
	}

	mgr := session.NewManager(factory, session.Config{
		PollInterval: time.Hour,
		Tracker: txn.Config{
			NameSettle: 20 * time.Millisecond,
			GameSettle: 20 * time.Millisecond,
		},
	}, opts, 0)

	hub := ws.NewHub()
	h := handlers.NewHandler(mgr, hub, cfg.TokenTTL)
	h.TransactionRepo = txRepo
	h.GameRepo = gameRepo
	health := handlers.NewHealthHandler(map[string]handlers.Pinger{}, mgr.Len, "test")

	r := gin.New()
	httpserver.RegisterRoutes(r, h, health, cfg)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
		mgr.CloseAll()
	})
	return &stack{srv: srv, sim: sim, addr: addr, db: withDB}
}

func (s *stack) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out.Bytes()
}

func (s *stack) login(t *testing.T) string {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/api/v1/session", "", map[string]string{"address": s.addr.Hex()})
	require.Equal(t, http.StatusOK, code, string(body))

	var resp struct {
		Token string       `json:"token"`
		View  session.View `json:"view"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.Token)
	require.Equal(t, s.addr, resp.View.Address)
	return resp.Token
}

func (s *stack) state(t *testing.T, token string) session.View {
	t.Helper()
	code, body := s.do(t, http.MethodGet, "/api/v1/state", token, nil)
	require.Equal(t, http.StatusOK, code, string(body))
	var v session.View
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func (s *stack) click(t *testing.T, token string, i int) session.View {
	t.Helper()
	code, body := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/game/bottles/%d/click", i), token, nil)
	require.Equal(t, http.StatusOK, code, string(body))
	var resp struct {
		Accepted bool         `json:"accepted"`
		View     session.View `json:"view"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.True(t, resp.Accepted)
	return resp.View
}

func (s *stack) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func nextMessage(t *testing.T, conn *websocket.Conn, typ string) ws.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var m ws.Message
		require.NoError(t, conn.ReadJSON(&m))
		if m.Type == typ {
			return m
		}
	}
}

// playToWin starts a game over HTTP, solves it with clicks and submits it.
func (s *stack) playToWin(t *testing.T, token string) uint64 {
	t.Helper()

	code, body := s.do(t, http.MethodPost, "/api/v1/game/start", token, nil)
	require.Equal(t, http.StatusAccepted, code, string(body))

	var v session.View
	require.Eventually(t, func() bool {
		v = s.state(t, token)
		return v.Active && v.GameID != domain.NoGame && !v.Busy
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, v.Target, "target stays hidden until revealed")

	raw, ok := s.sim.Game(v.GameID)
	require.True(t, ok)
	target := raw.Decode(v.GameID).Target

	for i := range target {
		if v.Bottles[i] == target[i] {
			continue
		}
		for j := i + 1; j < len(v.Bottles); j++ {
			if v.Bottles[j] == target[i] {
				s.click(t, token, i)
				v = s.click(t, token, j)
				break
			}
		}
	}
	require.True(t, v.CanSubmit)

	code, body = s.do(t, http.MethodPost, "/api/v1/game/submit", token, nil)
	require.Equal(t, http.StatusAccepted, code, string(body))
	return v.GameID
}

func TestSessionFlowOverHTTPAndWebSocket(t *testing.T) {
	st := newStack(t, false)

	code, _ := st.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = st.do(t, http.MethodGet, "/api/v1/state", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)

	token := st.login(t)
	conn := st.dial(t, token)
	nextMessage(t, conn, ws.MsgReady)

	code, body := st.do(t, http.MethodPost, "/api/v1/game/submit", token, nil)
	require.Equal(t, http.StatusConflict, code, string(body))

	code, body = st.do(t, http.MethodPost, "/api/v1/player/name", token, map[string]string{"name": ""})
	require.Equal(t, http.StatusBadRequest, code, string(body))

	code, body = st.do(t, http.MethodPost, "/api/v1/player/name", token, map[string]string{"name": "dora"})
	require.Equal(t, http.StatusAccepted, code, string(body))
	require.Eventually(t, func() bool {
		return st.state(t, token).Player.Name == "dora"
	}, 5*time.Second, 10*time.Millisecond)

	gameID := st.playToWin(t, token)

	var done session.Completion
	require.NoError(t, json.Unmarshal(nextMessage(t, conn, ws.MsgCompleted).Payload, &done))
	assert.Equal(t, domain.OutcomeWin, done.Outcome)
	require.NotNil(t, done.Game)
	assert.Equal(t, gameID, done.Game.ID)
	assert.False(t, done.Game.Active)

	require.Eventually(t, func() bool {
		v := st.state(t, token)
		return v.GameID == domain.NoGame && v.Player.Points == chain.PointsPerWin
	}, 5*time.Second, 10*time.Millisecond)

	code, _ = st.do(t, http.MethodGet, "/api/v1/history/games", token, nil)
	assert.Equal(t, http.StatusNotFound, code, "no journal configured")

	code, _ = st.do(t, http.MethodDelete, "/api/v1/session", token, nil)
	require.Equal(t, http.StatusNoContent, code)
}

func TestUnknownSignerIsRejected(t *testing.T) {
	st := newStack(t, false)
	code, _ := st.do(t, http.MethodPost, "/api/v1/session", "", map[string]string{
		"address": "0x00000000000000000000000000000000000000b2",
	})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = st.do(t, http.MethodPost, "/api/v1/session", "", map[string]string{"address": "nope"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCompletedGamesAreJournaled(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set")
	}
	st := newStack(t, true)
	token := st.login(t)
	gameID := st.playToWin(t, token)

	var games []domain.CompletedGame
	require.Eventually(t, func() bool {
		code, body := st.do(t, http.MethodGet, "/api/v1/history/games", token, nil)
		if code != http.StatusOK {
			return false
		}
		var resp struct {
			Games []domain.CompletedGame `json:"games"`
		}
		if json.Unmarshal(body, &resp) != nil {
			return false
		}
		games = resp.Games
		return len(games) > 0 && games[0].GameID == gameID
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, domain.OutcomeWin, games[0].Outcome)

	require.Eventually(t, func() bool {
		code, body := st.do(t, http.MethodGet, "/api/v1/history/transactions?limit=20", token, nil)
		if code != http.StatusOK {
			return false
		}
		var resp struct {
			Transactions []domain.JournalEntry `json:"transactions"`
		}
		if json.Unmarshal(body, &resp) != nil {
			return false
		}
		for _, e := range resp.Transactions {
			if e.Kind == domain.TxSubmitResult && e.Status == domain.TxSuccess {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}
