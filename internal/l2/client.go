// Package l2 is the concrete ports.L2Api adapter: a thin GraphQL client
// against the source chain's node. No GraphQL client library appears
// anywhere in the retrieved pack, so this is a deliberate stdlib-only
// exception (see DESIGN.md); everything else in this adapter follows the
// same error-budget health-check pattern as internal/l1.
package l2

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/l2settle/committer/internal/ports"
)

var log = logrus.WithField("component", "l2")

const latestBlockQuery = `query { chain { latestBlock { ...blockFields } } }`
const blockAtQuery = `query($height: U32!) { block(height: $height) { ...blockFields } }`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type blockFields struct {
	ID     string `json:"id"`
	Header struct {
		Height           uint32 `json:"height"`
		PrevRoot         string `json:"prevRoot"`
		Time             int64  `json:"time"`
		ApplicationHash  string `json:"applicationHash"`
		TransactionsRoot string `json:"transactionsRoot"`
	} `json:"header"`
	Consensus struct {
		Signature string `json:"signature"`
	} `json:"consensus"`
	Transactions []string `json:"rawTransactions"`
}

// Client is the ports.L2Api implementation.
type Client struct {
	httpClient *http.Client
	endpoint   string

	errorBudget int64
	consecutive int64
}

// New builds a Client against the given GraphQL endpoint. errorBudget
// mirrors spec §6 "fuel_errors_before_unhealthy".
func New(httpClient *http.Client, endpoint string, errorBudget int64) *Client {
	return &Client{httpClient: httpClient, endpoint: endpoint, errorBudget: errorBudget}
}

func (c *Client) record(err error) error {
	if err != nil {
		atomic.AddInt64(&c.consecutive, 1)
		return err
	}
	atomic.StoreInt64(&c.consecutive, 0)
	return nil
}

// LatestBlock returns the most recent L2 block.
func (c *Client) LatestBlock(ctx context.Context) (ports.FuelBlock, error) {
	var resp struct {
		Chain struct {
			LatestBlock *blockFields `json:"latestBlock"`
		} `json:"chain"`
	}
	if err := c.record(c.query(ctx, latestBlockQuery, nil, &resp)); err != nil {
		return ports.FuelBlock{}, errors.Wrap(err, "querying latest block")
	}
	if resp.Chain.LatestBlock == nil {
		return ports.FuelBlock{}, errors.New("latest block: empty response")
	}
	block, err := decodeBlock(*resp.Chain.LatestBlock)
	return block, errors.Wrap(err, "decoding latest block")
}

// BlockAt returns the L2 block at height, or (zero value, false, nil) if
// the chain has not produced it yet.
func (c *Client) BlockAt(ctx context.Context, height uint32) (ports.FuelBlock, bool, error) {
	var resp struct {
		Block *blockFields `json:"block"`
	}
	vars := map[string]any{"height": height}
	if err := c.record(c.query(ctx, blockAtQuery, vars, &resp)); err != nil {
		return ports.FuelBlock{}, false, errors.Wrapf(err, "querying block at height %d", height)
	}
	if resp.Block == nil {
		return ports.FuelBlock{}, false, nil
	}
	block, err := decodeBlock(*resp.Block)
	return block, true, errors.Wrapf(err, "decoding block at height %d", height)
}

func (c *Client) query(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return errors.Wrap(err, "encoding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending request")
	}
	defer resp.Body.Close()

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errors.Wrap(err, "decoding response envelope")
	}
	if len(envelope.Errors) > 0 {
		return errors.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	return errors.Wrap(json.Unmarshal(envelope.Data, out), "decoding response data")
}

func decodeBlock(f blockFields) (ports.FuelBlock, error) {
	var block ports.FuelBlock

	id, err := decodeHash32(f.ID)
	if err != nil {
		return block, errors.Wrap(err, "id")
	}
	prevRoot, err := decodeHash32(f.Header.PrevRoot)
	if err != nil {
		return block, errors.Wrap(err, "prevRoot")
	}
	appHash, err := decodeHash32(f.Header.ApplicationHash)
	if err != nil {
		return block, errors.Wrap(err, "applicationHash")
	}
	txRoot, err := decodeHash32(f.Header.TransactionsRoot)
	if err != nil {
		return block, errors.Wrap(err, "transactionsRoot")
	}
	sig, err := decodeSignature(f.Consensus.Signature)
	if err != nil {
		return block, errors.Wrap(err, "signature")
	}

	txs := make([][]byte, len(f.Transactions))
	for i, raw := range f.Transactions {
		decoded, err := decodeHex(raw)
		if err != nil {
			return block, errors.Wrapf(err, "transaction %d", i)
		}
		txs[i] = decoded
	}

	block.ID = id
	block.Header = ports.FuelHeader{
		Height:           f.Header.Height,
		PrevRoot:         prevRoot,
		Time:             f.Header.Time,
		ApplicationHash:  appHash,
		TransactionsRoot: txRoot,
	}
	block.Consensus = ports.FuelConsensus{Signature: sig}
	block.Transactions = txs
	return block, nil
}

// ConnectionHealthChecker exposes this client's consecutive-error budget.
func (c *Client) ConnectionHealthChecker() ports.HealthChecker {
	return healthChecker{c}
}

type healthChecker struct{ c *Client }

func (h healthChecker) Healthy() bool {
	healthy := atomic.LoadInt64(&h.c.consecutive) < h.c.errorBudget
	if !healthy {
		log.Warn("l2 client unhealthy: consecutive error budget exhausted")
	}
	return healthy
}
