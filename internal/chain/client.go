package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/proquint-registry/backend/internal/models"
	"github.com/proquint-registry/backend/internal/proquint"
	"go.uber.org/zap"
)

// Backend is the part of ethclient.Client the registry reader needs.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Registry is the read side of the contract consumed by services.
type Registry interface {
	LatestBlock(ctx context.Context) (uint64, error)
	BlockTime(ctx context.Context, number *big.Int) (time.Time, error)
	GetExpiry(ctx context.Context, id proquint.ID) (uint64, error)
	InboxExpiry(ctx context.Context, id proquint.ID) (uint64, error)
	InboxCount(ctx context.Context, user common.Address) (uint64, error)
	PrimaryName(ctx context.Context, user common.Address) (proquint.ID, error)
	Owner(ctx context.Context, id proquint.ID) (common.Address, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
	TotalInbox(ctx context.Context) (*big.Int, error)
	FilterEvents(ctx context.Context, from, to uint64) ([]models.ChainEvent, error)
}

type Client struct {
	backend  Backend
	contract common.Address
	log      *zap.Logger
}

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, rpcURL string, contract common.Address, log *zap.Logger) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	chainID, err := ec.ChainID(ctx)
	if err != nil {
		ec.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	log.Info("eth rpc connected",
		zap.String("rpc", rpcURL),
		zap.String("chain_id", chainID.String()),
		zap.String("contract", contract.Hex()),
	)
	return NewClient(ec, contract, log), nil
}

func NewClient(backend Backend, contract common.Address, log *zap.Logger) *Client {
	return &Client{backend: backend, contract: contract, log: log}
}

func (c *Client) Contract() common.Address {
	return c.contract
}

func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	input, err := registryABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	res, err := registryABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return res, nil
}

func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	return c.backend.BlockNumber(ctx)
}

// BlockTime returns the timestamp of the given block, latest when number is nil.
func (c *Client) BlockTime(ctx context.Context, number *big.Int) (time.Time, error) {
	h, err := c.backend.HeaderByNumber(ctx, number)
	if err != nil {
		return time.Time{}, fmt.Errorf("header: %w", err)
	}
	return time.Unix(int64(h.Time), 0).UTC(), nil
}

func (c *Client) GetExpiry(ctx context.Context, id proquint.ID) (uint64, error) {
	res, err := c.call(ctx, "getExpiry", [4]byte(id))
	if err != nil {
		return 0, err
	}
	return toUint64(res[0])
}

func (c *Client) InboxExpiry(ctx context.Context, id proquint.ID) (uint64, error) {
	res, err := c.call(ctx, "inboxExpiry", [4]byte(id))
	if err != nil {
		return 0, err
	}
	return toUint64(res[0])
}

func (c *Client) InboxCount(ctx context.Context, user common.Address) (uint64, error) {
	res, err := c.call(ctx, "inboxCount", user)
	if err != nil {
		return 0, err
	}
	return toUint64(res[0])
}

// PrimaryName returns the zero id when user has no primary name.
func (c *Client) PrimaryName(ctx context.Context, user common.Address) (proquint.ID, error) {
	res, err := c.call(ctx, "primaryName", user)
	if err != nil {
		return proquint.ID{}, err
	}
	raw, ok := res[0].([4]byte)
	if !ok {
		return proquint.ID{}, fmt.Errorf("primaryName: unexpected type %T", res[0])
	}
	return proquint.ID(raw), nil
}

func (c *Client) Owner(ctx context.Context, id proquint.ID) (common.Address, error) {
	res, err := c.call(ctx, "owner", [4]byte(id))
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := res[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("owner: unexpected type %T", res[0])
	}
	return addr, nil
}

func (c *Client) TotalSupply(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "totalSupply")
}

func (c *Client) TotalInbox(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "totalInbox")
}

func (c *Client) callBig(ctx context.Context, method string) (*big.Int, error) {
	res, err := c.call(ctx, method)
	if err != nil {
		return nil, err
	}
	v, ok := res[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected type %T", method, res[0])
	}
	return v, nil
}

func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case *big.Int:
		if !n.IsUint64() {
			return 0, fmt.Errorf("value %s overflows uint64", n)
		}
		return n.Uint64(), nil
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}
