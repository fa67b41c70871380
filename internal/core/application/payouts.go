package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	log "github.com/sirupsen/logrus"
	"github.com/vault-network/vault/common/connector"
	"github.com/vault-network/vault/common/polling"
	"github.com/vault-network/vault/internal/core/domain"
	"golang.org/x/sync/errgroup"
)

const payoutsPollingOperation = "claim_and_payout_transactions"

var errPayoutsNotReady = polling.Transient(fmt.Errorf("payout transactions not ready"))

func (s *service) signPayouts(ctx context.Context, d *domain.Deposit) error {
	if !hasPayouts(d) {
		if !d.Stage.Waiting {
			if err := s.update(ctx, d.Id, func(d *domain.Deposit) ([]domain.DepositEvent, error) {
				return d.StartWaiting()
			}); err != nil {
				return err
			}
		}

		payouts, err := s.waitForPayouts(ctx, d)
		if err != nil {
			return err
		}

		var updated *domain.Deposit
		if err := s.update(ctx, d.Id, func(d *domain.Deposit) ([]domain.DepositEvent, error) {
			events, err := d.StopWaiting(payouts)
			updated = d
			return events, err
		}); err != nil {
			return err
		}
		d = updated
	}

	signatures := make([]map[string]string, 0, len(d.Vaults))
	for _, vault := range d.Vaults {
		sigs, err := s.signVaultPayouts(ctx, d, vault)
		if err != nil {
			return fmt.Errorf("vault %d: %w", vault.Index, err)
		}
		if err := s.vaultProvider.SubmitPayoutSignatures(
			ctx, vault.PeginTxid, d.DepositorBtcPubkey, sigs,
		); err != nil {
			return fmt.Errorf("failed to submit payout signatures of vault %d: %w", vault.Index, err)
		}
		signatures = append(signatures, sigs)
	}

	return s.update(ctx, d.Id, func(d *domain.Deposit) ([]domain.DepositEvent, error) {
		return d.SignPayouts(signatures)
	})
}

// waitForPayouts polls the vault provider for the claim and payout
// transactions of every vault at once. Every poll owns its context, the
// failure of one vault does not abort the others.
func (s *service) waitForPayouts(
	ctx context.Context, d *domain.Deposit,
) ([][]domain.ClaimPayout, error) {
	payouts := make([][]domain.ClaimPayout, len(d.Vaults))
	opts := polling.Options{
		Interval: s.cfg.PollingInterval,
		Timeout:  s.cfg.PayoutsTimeout,
	}

	var g errgroup.Group
	for _, vault := range d.Vaults {
		vault := vault
		pollCtx, cancel := context.WithCancel(ctx)
		g.Go(func() error {
			defer cancel()

			res, err := polling.Until(pollCtx, func(ctx context.Context) (*[]domain.ClaimPayout, error) {
				txs, err := s.vaultProvider.RequestClaimAndPayoutTransactions(
					ctx, vault.PeginTxid, d.DepositorBtcPubkey,
				)
				if err != nil {
					s.metrics.RecordPollingAttempt(payoutsPollingOperation, pollingOutcome(err))
					return nil, err
				}
				if len(txs) <= 0 {
					s.metrics.RecordPollingAttempt(payoutsPollingOperation, "pending")
					return nil, errPayoutsNotReady
				}
				s.metrics.RecordPollingAttempt(payoutsPollingOperation, "success")
				return &txs, nil
			}, opts)
			if err != nil {
				return fmt.Errorf("failed to get payouts of vault %d: %w", vault.Index, err)
			}

			log.WithField("deposit", d.Id).Debugf(
				"got %d payout transactions for vault %d", len(*res), vault.Index,
			)
			payouts[vault.Index] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return payouts, nil
}

// signVaultPayouts signs the payout transaction of every claimer of the
// vault and returns the signatures by claimer.
func (s *service) signVaultPayouts(
	ctx context.Context, d *domain.Deposit, vault domain.Vault,
) (map[string]string, error) {
	c, err := connector.ParsePeginPayoutConnector(
		d.DepositorBtcPubkey, s.cfg.VaultProviderPubkey,
		s.cfg.VaultKeepers, s.cfg.UniversalChallengers,
	)
	if err != nil {
		return nil, err
	}
	peginTx, err := connector.DecodeTx(vault.PeginTx)
	if err != nil {
		return nil, err
	}

	signatures := make(map[string]string, len(vault.Payouts))
	for _, p := range vault.Payouts {
		claimTx, err := connector.DecodeTx(p.ClaimTx)
		if err != nil {
			return nil, fmt.Errorf("claim tx of claimer %s: %w", p.ClaimerPubkey, err)
		}
		payoutTx, err := connector.DecodeTx(p.PayoutTx)
		if err != nil {
			return nil, fmt.Errorf("payout tx of claimer %s: %w", p.ClaimerPubkey, err)
		}

		ptx, err := c.NewPayoutPacket(payoutTx, connector.Prevouts(peginTx, claimTx))
		if err != nil {
			return nil, fmt.Errorf("payout tx of claimer %s: %w", p.ClaimerPubkey, err)
		}
		b64, err := ptx.B64Encode()
		if err != nil {
			return nil, err
		}
		signedB64, err := s.wallet.SignPsbt(ctx, b64)
		if err != nil {
			return nil, fmt.Errorf("wallet failed to sign payout of claimer %s: %w", p.ClaimerPubkey, err)
		}
		signed, err := psbt.NewFromRawBytes(strings.NewReader(signedB64), true)
		if err != nil {
			return nil, err
		}

		sig, err := c.PayoutSignature(signed)
		if err != nil {
			return nil, fmt.Errorf("payout of claimer %s: %w", p.ClaimerPubkey, err)
		}
		if err := c.VerifyPayoutSignature(signed, vaultInputIndex(signed), sig); err != nil {
			return nil, fmt.Errorf(
				"invalid signature for payout of claimer %s: %w", p.ClaimerPubkey, err,
			)
		}
		signatures[p.ClaimerPubkey] = sig
	}
	return signatures, nil
}

func hasPayouts(d *domain.Deposit) bool {
	for _, v := range d.Vaults {
		if len(v.Payouts) <= 0 {
			return false
		}
	}
	return true
}

// vaultInputIndex returns the index of the input spending the vault output,
// the only one carrying the payout leaf.
func vaultInputIndex(ptx *psbt.Packet) int {
	for i, in := range ptx.Inputs {
		if len(in.TaprootLeafScript) > 0 {
			return i
		}
	}
	return -1
}

func pollingOutcome(err error) string {
	if polling.IsTransientError(err) {
		return "transient_error"
	}
	return "error"
}
