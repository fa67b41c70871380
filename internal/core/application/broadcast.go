package application

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
	"github.com/vault-network/vault/common/connector"
	"github.com/vault-network/vault/common/pegin"
	"github.com/vault-network/vault/internal/core/domain"
)

// broadcast signs and publishes the split transaction, if any, and then
// every peg-in. Transactions already known by the explorer are skipped so
// that a retried broadcast never double-spends.
func (s *service) broadcast(ctx context.Context, d *domain.Deposit) error {
	logger := log.WithField("deposit", d.Id)
	txids := make([]string, 0, len(d.Vaults)+1)
	known := make(map[wire.OutPoint]*wire.TxOut)

	if len(d.SplitTx) > 0 {
		splitTx, err := connector.DecodeTx(d.SplitTx)
		if err != nil {
			return fmt.Errorf("split tx: %w", err)
		}
		txid, err := s.signAndBroadcast(ctx, splitTx, known)
		if err != nil {
			return fmt.Errorf("failed to broadcast split tx: %w", err)
		}
		logger.Infof("split tx %s broadcasted", txid)
		txids = append(txids, txid)
		known = connector.Prevouts(splitTx)
	}

	for _, vault := range d.Vaults {
		tx, err := connector.DecodeTx(vault.PeginTx)
		if err != nil {
			return fmt.Errorf("pegin tx of vault %d: %w", vault.Index, err)
		}
		txid, err := s.signAndBroadcast(ctx, tx, known)
		if err != nil {
			return fmt.Errorf("failed to broadcast pegin tx of vault %d: %w", vault.Index, err)
		}
		if txid != vault.PeginTxid {
			return fmt.Errorf(
				"broadcasted pegin txid %s does not match submitted one %s", txid, vault.PeginTxid,
			)
		}
		logger.Infof("pegin tx %s of vault %d broadcasted", txid, vault.Index)
		txids = append(txids, txid)
	}

	return s.update(ctx, d.Id, func(d *domain.Deposit) ([]domain.DepositEvent, error) {
		return d.Broadcast(txids)
	})
}

func (s *service) signAndBroadcast(
	ctx context.Context, tx *wire.MsgTx, known map[wire.OutPoint]*wire.TxOut,
) (string, error) {
	txid := tx.TxHash().String()
	if _, err := s.explorer.GetTxHex(ctx, txid); err == nil {
		log.Debugf("tx %s already broadcasted, skipping", txid)
		return txid, nil
	}

	utxos, err := s.prevoutUtxos(ctx, tx, known)
	if err != nil {
		return "", err
	}
	internalKey, err := s.wallet.GetTaprootInternalKey(ctx)
	if err != nil {
		return "", err
	}
	packet, err := pegin.NewSigningPacket(tx, utxos, internalKey)
	if err != nil {
		return "", err
	}
	b64, err := packet.B64Encode()
	if err != nil {
		return "", err
	}
	signedB64, err := s.wallet.SignPsbt(ctx, b64)
	if err != nil {
		return "", fmt.Errorf("wallet failed to sign tx %s: %w", txid, err)
	}

	signed, err := psbt.NewFromRawBytes(strings.NewReader(signedB64), true)
	if err != nil {
		return "", err
	}
	if err := psbt.MaybeFinalizeAll(signed); err != nil {
		return "", fmt.Errorf("failed to finalize tx %s: %w", txid, err)
	}
	final, err := psbt.Extract(signed)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := final.Serialize(&buf); err != nil {
		return "", err
	}
	return s.explorer.Broadcast(ctx, hex.EncodeToString(buf.Bytes()))
}

// prevoutUtxos resolves the outputs spent by tx, looking them up in known
// first and then fetching the parent transactions from the explorer.
func (s *service) prevoutUtxos(
	ctx context.Context, tx *wire.MsgTx, known map[wire.OutPoint]*wire.TxOut,
) ([]pegin.UTXO, error) {
	parents := make(map[string]*wire.MsgTx)
	utxos := make([]pegin.UTXO, 0, len(tx.TxIn))

	for _, in := range tx.TxIn {
		outpoint := in.PreviousOutPoint
		prevout, ok := known[outpoint]
		if !ok {
			parentTxid := outpoint.Hash.String()
			parent, ok := parents[parentTxid]
			if !ok {
				txHex, err := s.explorer.GetTxHex(ctx, parentTxid)
				if err != nil {
					return nil, fmt.Errorf("failed to get prevout %s: %w", outpoint, err)
				}
				if parent, err = connector.DecodeTx(txHex); err != nil {
					return nil, err
				}
				parents[parentTxid] = parent
			}
			if int(outpoint.Index) >= len(parent.TxOut) {
				return nil, fmt.Errorf("prevout %s not found", outpoint)
			}
			prevout = parent.TxOut[outpoint.Index]
		}

		utxos = append(utxos, pegin.UTXO{
			Txid:         outpoint.Hash.String(),
			Vout:         outpoint.Index,
			Value:        uint64(prevout.Value),
			ScriptPubKey: prevout.PkScript,
		})
	}
	return utxos, nil
}
