package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"colorsnap/internal/domain"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client talks to the ColorSnap contract over JSON-RPC
type Client struct {
	eth      *ethclient.Client
	contract *bind.BoundContract
	address  common.Address
	chainID  *big.Int

	receiptPoll time.Duration
}

// Dial connects to rpcURL and binds the contract at address.
func Dial(ctx context.Context, rpcURL string, address common.Address) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}

	parsed, err := parseABI()
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	return &Client{
		eth:         eth,
		contract:    bind.NewBoundContract(address, parsed, eth, eth, eth),
		address:     address,
		chainID:     chainID,
		receiptPoll: ReceiptPollInterval,
	}, nil
}

// Close releases the RPC connection
func (c *Client) Close() {
	c.eth.Close()
}

// ChainID returns the id reported at dial time
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Ping checks the node is answering.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.eth.BlockNumber(ctx)
	return err
}

func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

// PlayerName returns the registered name, or "" if none
func (c *Client) PlayerName(ctx context.Context, player common.Address) (string, error) {
	out, err := c.call(ctx, MethodGetPlayerName, player)
	if err != nil {
		return "", err
	}
	return outString(out, 0)
}

// PlayerPoints returns the player's score
func (c *Client) PlayerPoints(ctx context.Context, player common.Address) (uint64, error) {
	out, err := c.call(ctx, MethodGetPlayerPoints, player)
	if err != nil {
		return 0, err
	}
	return outUint(out, 0)
}

// ActiveGameID returns the player's active game or domain.NoGame
func (c *Client) ActiveGameID(ctx context.Context, player common.Address) (uint64, error) {
	out, err := c.call(ctx, MethodGetPlayerActiveGame, player)
	if err != nil {
		return 0, err
	}
	return outUint(out, 0)
}

// GameState reads the full tuple of a game
func (c *Client) GameState(ctx context.Context, gameID uint64) (*domain.RawGameState, error) {
	out, err := c.call(ctx, MethodGetGameState, new(big.Int).SetUint64(gameID))
	if err != nil {
		return nil, err
	}

	var st domain.RawGameState
	if st.Owner, err = outAddress(out, 0); err != nil {
		return nil, err
	}
	if st.Bottles, err = outCodes(out, 1); err != nil {
		return nil, err
	}
	if st.Target, err = outCodes(out, 2); err != nil {
		return nil, err
	}
	if st.MoveCount, err = outUint(out, 3); err != nil {
		return nil, err
	}
	if st.Active, err = outBool(out, 4); err != nil {
		return nil, err
	}
	return &st, nil
}

// AwaitConfirmation waits for the transaction to be mined. There is no
// deadline of its own; ctx bounds the wait.
func (c *Client) AwaitConfirmation(ctx context.Context, h domain.Handle) error {
	hash := common.HexToHash(string(h))

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("%s: %w", h, ErrReverted)
			}
			return nil
		case !errors.Is(err, ethereum.NotFound):
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.receiptPoll):
		}
	}
}

// WithSigner binds a private key, producing a Gateway for its address.
func (c *Client) WithSigner(key *ecdsa.PrivateKey) (*Account, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	return &Account{Client: c, opts: opts}, nil
}

// Account is a Client plus a signing identity
type Account struct {
	*Client
	opts *bind.TransactOpts
}

// Identity returns the signer address
func (a *Account) Identity() common.Address {
	return a.opts.From
}

func (a *Account) transact(ctx context.Context, method string, args ...interface{}) (domain.Handle, error) {
	opts := *a.opts
	opts.Context = ctx

	tx, err := a.contract.Transact(&opts, method, args...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", method, err)
	}
	return domain.Handle(tx.Hash().Hex()), nil
}

func (a *Account) SetPlayerName(ctx context.Context, name string) (domain.Handle, error) {
	return a.transact(ctx, MethodSetPlayerName, name)
}

func (a *Account) StartGame(ctx context.Context) (domain.Handle, error) {
	return a.transact(ctx, MethodStartGame)
}

func (a *Account) SubmitResult(ctx context.Context, gameID uint64, bottles []uint8, moves uint64) (domain.Handle, error) {
	return a.transact(ctx, MethodSubmitResult,
		new(big.Int).SetUint64(gameID), bottles, new(big.Int).SetUint64(moves))
}

func (a *Account) EndGame(ctx context.Context, gameID uint64) (domain.Handle, error) {
	return a.transact(ctx, MethodEndGame, new(big.Int).SetUint64(gameID))
}
