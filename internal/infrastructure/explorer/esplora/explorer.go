package esploraexplorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/vault-network/vault/common/pegin"
	"github.com/vault-network/vault/internal/core/ports"
)

const requestTimeout = 15 * time.Second

type utxo struct {
	Txid   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Amount uint64 `json:"value"`
	Status struct {
		Confirmed bool  `json:"confirmed"`
		Blocktime int64 `json:"block_time"`
	} `json:"status"`
}

type explorerSvc struct {
	baseUrl string
	net     *chaincfg.Params
	client  *http.Client
}

func NewExplorer(baseUrl string, net *chaincfg.Params) (ports.Explorer, error) {
	if _, err := url.ParseRequestURI(baseUrl); err != nil {
		return nil, fmt.Errorf("invalid explorer url: %s", err)
	}
	if net == nil {
		return nil, fmt.Errorf("missing network")
	}
	return &explorerSvc{
		baseUrl: strings.TrimSuffix(baseUrl, "/"),
		net:     net,
		client:  &http.Client{Timeout: requestTimeout},
	}, nil
}

// GetUtxos returns the utxos of the given address, including unconfirmed ones.
func (e *explorerSvc) GetUtxos(ctx context.Context, address string) ([]pegin.UTXO, error) {
	addr, err := btcutil.DecodeAddress(address, e.net)
	if err != nil {
		return nil, fmt.Errorf("invalid address %s: %w", address, err)
	}
	if !addr.IsForNet(e.net) {
		return nil, fmt.Errorf("address %s is not for network %s", address, e.net.Name)
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	body, err := e.get(ctx, "address", address, "utxo")
	if err != nil {
		return nil, err
	}

	var payload []utxo
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	utxos := make([]pegin.UTXO, 0, len(payload))
	for _, u := range payload {
		utxos = append(utxos, pegin.UTXO{
			Txid:         u.Txid,
			Vout:         u.Vout,
			Value:        u.Amount,
			ScriptPubKey: append([]byte{}, pkScript...),
		})
	}
	return utxos, nil
}

func (e *explorerSvc) GetTxHex(ctx context.Context, txid string) (string, error) {
	body, err := e.get(ctx, "tx", txid, "hex")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (e *explorerSvc) Broadcast(ctx context.Context, txHex string) (string, error) {
	endpoint, err := url.JoinPath(e.baseUrl, "tx")
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(txHex))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to broadcast transaction: %s (%s)", resp.Status, content)
	}

	return strings.TrimSpace(string(content)), nil
}

func (e *explorerSvc) get(ctx context.Context, path ...string) ([]byte, error) {
	endpoint, err := url.JoinPath(e.baseUrl, path...)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(path[0] + " endpoint HTTP error: " + resp.Status + " " + string(body))
	}
	return body, nil
}
