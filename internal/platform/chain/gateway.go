// Package chain implements the execution gateway: it submits open, close,
// diagnostic, and withdraw transactions against the on-chain strategy
// contract over JSON-RPC and waits for their confirmation.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// traderABIJSON is the strategy contract surface the bot drives. All four
// methods take no arguments; position sizing is read from the money-market
// tokens, not the contract itself.
const traderABIJSON = `[
	{"type":"function","name":"openLong","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"closeLong","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"diagnose","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"withdrawAll","inputs":[],"outputs":[],"stateMutability":"nonpayable"}
]`

// mtokenABIJSON is the minimal money-market token surface used to derive
// the actual notional size of an open position.
const mtokenABIJSON = `[
	{"type":"function","name":"borrowBalanceCurrent","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"nonpayable"}
]`

const (
	wethDecimals = 18
	usdcDecimals = 6
)

// Config holds the gateway parameters.
type Config struct {
	RPCURL          string
	PrivateKey      string
	ContractAddress string
	MWETHAddress    string
	MUSDCAddress    string
	ChainID         int64
	GasLimit        uint64
	// GasPriceWei is the fixed legacy gas price for every submission.
	GasPriceWei *big.Int
	// ConfirmTimeout bounds the wait for a mined receipt. Expiry is a trade
	// execution failure, never an indefinite hang.
	ConfirmTimeout time.Duration
}

// Gateway implements domain.ExecutionGateway over go-ethereum.
type Gateway struct {
	client       *ethclient.Client
	contract     *bind.BoundContract
	contractAddr common.Address
	mwethAddr    common.Address
	musdcAddr    common.Address
	mtokenABI    abi.ABI
	opts         *bind.TransactOpts
	confirm      time.Duration
	logger       *slog.Logger
}

// New dials the RPC endpoint, derives the transacting key, and binds the
// strategy contract.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Gateway, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial rpc: %w", err)
	}

	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: invalid private key: %w", err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(pk, big.NewInt(cfg.ChainID))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: build transactor: %w", err)
	}
	opts.GasLimit = cfg.GasLimit
	opts.GasPrice = cfg.GasPriceWei

	traderABI, err := abi.JSON(strings.NewReader(traderABIJSON))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: parse trader abi: %w", err)
	}
	mtokenABI, err := abi.JSON(strings.NewReader(mtokenABIJSON))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: parse mtoken abi: %w", err)
	}

	contractAddr := common.HexToAddress(cfg.ContractAddress)

	return &Gateway{
		client:       client,
		contract:     bind.NewBoundContract(contractAddr, traderABI, client, client, client),
		contractAddr: contractAddr,
		mwethAddr:    common.HexToAddress(cfg.MWETHAddress),
		musdcAddr:    common.HexToAddress(cfg.MUSDCAddress),
		mtokenABI:    mtokenABI,
		opts:         opts,
		confirm:      cfg.ConfirmTimeout,
		logger:       logger.With(slog.String("component", "chain_gateway")),
	}, nil
}

// Close releases the RPC connection.
func (g *Gateway) Close() {
	g.client.Close()
}

// OpenLong submits the contract's open call and waits for confirmation.
func (g *Gateway) OpenLong(ctx context.Context) (string, error) {
	return g.transact(ctx, "open", "openLong")
}

// CloseLong submits the contract's close call and waits for confirmation.
func (g *Gateway) CloseLong(ctx context.Context) (string, error) {
	return g.transact(ctx, "close", "closeLong")
}

// Diagnose submits the contract's diagnostic call so an operator can
// inspect contract-side state after a revert.
func (g *Gateway) Diagnose(ctx context.Context) (string, error) {
	return g.transact(ctx, "diagnose", "diagnose")
}

// WithdrawAll sweeps all funds to the owner.
func (g *Gateway) WithdrawAll(ctx context.Context) (string, error) {
	return g.transact(ctx, "withdraw", "withdrawAll")
}

// transact submits one contract method call and blocks until the receipt is
// mined or the bounded confirmation wait expires. Every failure comes back
// as a *domain.TradeExecutionError carrying whatever transaction reference
// exists at that point.
func (g *Gateway) transact(ctx context.Context, op, method string) (string, error) {
	opts := *g.opts
	opts.Context = ctx

	tx, err := g.contract.Transact(&opts, method)
	if err != nil {
		return "", &domain.TradeExecutionError{
			Op:       op,
			Reverted: isRevertError(err),
			Err:      fmt.Errorf("submit %s: %w", method, err),
		}
	}

	txRef := tx.Hash().Hex()
	g.logger.InfoContext(ctx, "transaction submitted",
		slog.String("op", op),
		slog.String("tx", txRef),
	)

	waitCtx := ctx
	if g.confirm > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.confirm)
		defer cancel()
	}

	receipt, err := bind.WaitMined(waitCtx, g.client, tx)
	if err != nil {
		wrapped := err
		if waitCtx.Err() != nil {
			wrapped = fmt.Errorf("%w after %s", domain.ErrConfirmTimeout, g.confirm)
		}
		return txRef, &domain.TradeExecutionError{
			Op:    op,
			TxRef: txRef,
			Err:   fmt.Errorf("confirm %s: %w", method, wrapped),
		}
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return txRef, &domain.TradeExecutionError{
			Op:       op,
			TxRef:    txRef,
			Reverted: true,
			Err:      fmt.Errorf("%s reverted on-chain", method),
		}
	}

	g.logger.InfoContext(ctx, "transaction confirmed",
		slog.String("op", op),
		slog.String("tx", txRef),
		slog.Uint64("block", receipt.BlockNumber.Uint64()),
	)
	return txRef, nil
}

// PositionSize derives the notional size of the open position from the
// money-market borrow balances rather than any local estimate: a WETH
// borrow values the position at borrow × latestPrice, a USDC borrow is
// already in quote currency, and with no borrow on either leg the caller's
// previous size stands.
func (g *Gateway) PositionSize(ctx context.Context, latestPrice, prev decimal.Decimal) (decimal.Decimal, error) {
	wethBorrow, err := g.borrowBalance(ctx, g.mwethAddr, wethDecimals)
	if err != nil {
		return prev, fmt.Errorf("chain: weth borrow balance: %w", err)
	}
	usdcBorrow, err := g.borrowBalance(ctx, g.musdcAddr, usdcDecimals)
	if err != nil {
		return prev, fmt.Errorf("chain: usdc borrow balance: %w", err)
	}

	switch {
	case wethBorrow.IsPositive():
		return wethBorrow.Mul(latestPrice), nil
	case usdcBorrow.IsPositive():
		return usdcBorrow, nil
	default:
		return prev, nil
	}
}

// borrowBalance reads borrowBalanceCurrent for the strategy contract on one
// money-market token via eth_call.
func (g *Gateway) borrowBalance(ctx context.Context, token common.Address, tokenDecimals int32) (decimal.Decimal, error) {
	data, err := g.mtokenABI.Pack("borrowBalanceCurrent", g.contractAddr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pack call: %w", err)
	}

	out, err := g.client.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: data,
	}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("call contract: %w", err)
	}

	results, err := g.mtokenABI.Unpack("borrowBalanceCurrent", out)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unpack result: %w", err)
	}
	raw, ok := results[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("unexpected result type %T", results[0])
	}

	return decimal.NewFromBigInt(raw, -tokenDecimals), nil
}

// isRevertError reports whether an RPC error indicates an on-chain
// execution revert (as opposed to a transport or nonce problem).
func isRevertError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}
