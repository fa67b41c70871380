package application

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	log "github.com/sirupsen/logrus"
	"github.com/vault-network/vault/common/connector"
	"github.com/vault-network/vault/common/pegin"
	"github.com/vault-network/vault/common/pop"
	"github.com/vault-network/vault/internal/core/domain"
	"github.com/vault-network/vault/internal/core/ports"
)

// startFlow runs the deposit flow in background unless it's already running,
// in which case the running flow goes through one more round.
func (s *service) startFlow(id string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	if _, ok := s.running[id]; ok {
		s.running[id] = true
		return
	}
	s.running[id] = false
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.metrics.FlowStarted()
		defer s.metrics.FlowStopped()

		for {
			s.runFlow(s.ctx, id)

			s.lock.Lock()
			if again := s.running[id]; again && s.ctx.Err() == nil {
				s.running[id] = false
				s.lock.Unlock()
				continue
			}
			delete(s.running, id)
			s.lock.Unlock()
			return
		}
	}()
}

// runFlow drives the deposit step by step until it completes, fails or
// needs the user to act.
func (s *service) runFlow(ctx context.Context, id string) {
	logger := log.WithField("deposit", id)

	var lastVersion uint
	for {
		deposit, err := s.repoManager.Events().Load(ctx, id)
		if err != nil {
			if ctx.Err() == nil {
				logger.WithError(err).Warn("failed to load deposit")
			}
			return
		}
		if deposit.IsFailed() || deposit.IsCompleted() {
			return
		}
		if deposit.Version == lastVersion {
			logger.Warnf("flow is stuck at step %s", deposit.Stage.Code)
			return
		}
		lastVersion = deposit.Version

		var stepErr error
		switch deposit.Stage.Code {
		case domain.StepSignPop:
			stepErr = s.signPop(ctx, deposit)
		case domain.StepSubmitPegin:
			stepErr = s.submitPegin(ctx, deposit)
		case domain.StepSignPayouts:
			stepErr = s.signPayouts(ctx, deposit)
		case domain.StepArtifactDownload:
			if stepErr = s.saveArtifacts(ctx, deposit); stepErr == nil {
				// the user must confirm the download before broadcasting
				return
			}
		case domain.StepBroadcastBtc:
			// multi-vault deposits skip the download confirmation
			if len(deposit.Vaults) > 1 {
				stepErr = s.saveArtifacts(ctx, deposit)
			}
			if stepErr == nil {
				stepErr = s.broadcast(ctx, deposit)
			}
		default:
			return
		}
		if stepErr == nil {
			continue
		}

		if ctx.Err() != nil {
			logger.Debugf("flow interrupted at step %s", deposit.Stage.Code)
			return
		}

		logger.WithError(stepErr).Warnf("deposit failed at step %s", deposit.Stage.Code)
		if err := s.update(ctx, id, func(d *domain.Deposit) ([]domain.DepositEvent, error) {
			return d.Fail(stepErr), nil
		}); err != nil {
			logger.WithError(err).Warn("failed to persist deposit failure")
		}
		return
	}
}

func (s *service) signPop(ctx context.Context, d *domain.Deposit) error {
	vaultIndex := d.Stage.VaultIndex

	message, err := pop.Message(d.Depositor)
	if err != nil {
		return err
	}
	signature, err := s.wallet.SignMessage(ctx, message)
	if err != nil {
		return fmt.Errorf("wallet failed to sign proof of possession: %w", err)
	}

	pkScript, err := s.walletScript(ctx)
	if err != nil {
		return err
	}
	sig, err := pop.DecodeSignature(signature)
	if err != nil {
		return fmt.Errorf("invalid proof of possession: %w", err)
	}
	if err := sig.Verify(message, pkScript); err != nil {
		return fmt.Errorf("invalid proof of possession: %w", err)
	}

	return s.update(ctx, d.Id, func(d *domain.Deposit) ([]domain.DepositEvent, error) {
		return d.SignPop(vaultIndex, signature)
	})
}

func (s *service) submitPegin(ctx context.Context, d *domain.Deposit) error {
	vaultIndex := d.Stage.VaultIndex
	vault := d.Vaults[vaultIndex]

	a, err := s.getAttempt(ctx, d)
	if err != nil {
		return err
	}
	spent, err := spentByPegins(d)
	if err != nil {
		return err
	}
	selection, err := a.selection(vaultIndex, vault.Amount, d.FeeRate, spent)
	if err != nil {
		return err
	}
	peginTx, err := s.buildPeginTx(ctx, d.DepositorBtcPubkey, vault.Amount, selection)
	if err != nil {
		return err
	}

	receipt, err := s.contract.SubmitPeginRequest(ctx, ports.PeginRequest{
		Depositor:          d.Depositor,
		DepositorBtcPubkey: d.DepositorBtcPubkey,
		PopSignature:       vault.PopSignature,
		UnsignedPeginTx:    peginTx.TxHex,
		VaultProvider:      d.VaultProvider,
	})
	if err != nil {
		return fmt.Errorf("failed to submit pegin request: %w", err)
	}
	log.WithField("deposit", d.Id).Infof(
		"pegin %s of vault %d submitted in eth tx %s", peginTx.Txid, vaultIndex, receipt.EthTxHash,
	)

	return s.update(ctx, d.Id, func(d *domain.Deposit) ([]domain.DepositEvent, error) {
		return d.SubmitPegin(
			vaultIndex, peginTx.Txid, peginTx.TxHex, receipt.EthTxHash, receipt.VaultId,
		)
	})
}

func (s *service) saveArtifacts(ctx context.Context, d *domain.Deposit) error {
	path, err := s.artifacts.Save(ctx, d)
	if err != nil {
		return fmt.Errorf("failed to save deposit artifacts: %w", err)
	}
	log.WithField("deposit", d.Id).Infof("artifacts saved to %s", path)
	return nil
}

func (s *service) buildPeginTx(
	ctx context.Context, depositorPubkey string, amount uint64,
	selection *pegin.SelectionResult,
) (*pegin.PeginTx, error) {
	unfundedHex, err := s.builder.CreateUnfundedPeginTx(ctx, connector.PeginParams{
		DepositorPubkey:            depositorPubkey,
		VaultProviderPubkey:        s.cfg.VaultProviderPubkey,
		VaultKeeperPubkeys:         s.cfg.VaultKeepers,
		UniversalChallengerPubkeys: s.cfg.UniversalChallengers,
		PeginAmount:                amount,
		Network:                    s.cfg.Network.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create unfunded pegin: %w", err)
	}
	unfunded, err := pegin.ParseUnfundedTx(unfundedHex)
	if err != nil {
		return nil, err
	}
	if unfunded.VaultValue != amount {
		return nil, fmt.Errorf(
			"unfunded pegin locks %d sats, expected %d", unfunded.VaultValue, amount,
		)
	}

	address, err := s.wallet.GetAddress(ctx)
	if err != nil {
		return nil, err
	}
	internalKey, err := s.wallet.GetTaprootInternalKey(ctx)
	if err != nil {
		return nil, err
	}
	return pegin.BuildPeginTx(unfunded, selection, pegin.BuildParams{
		ChangeAddress:      address,
		Network:            s.cfg.Network.Params,
		TaprootInternalKey: internalKey,
	})
}

// getAttempt returns the attempt of the running flow. After a restart the
// split plan is rebuilt from the recorded split tx, otherwise the wallet
// utxos are snapshotted again.
func (s *service) getAttempt(ctx context.Context, d *domain.Deposit) (*attempt, error) {
	if a, ok := s.attempts.get(d.Id); ok {
		return &a, nil
	}

	var a attempt
	if d.Strategy == pegin.StrategySplit.String() {
		if len(d.SplitTx) <= 0 {
			return nil, fmt.Errorf("missing split transaction")
		}
		plan, err := pegin.NewSplitPlan(d.Amounts(), d.SplitTx)
		if err != nil {
			return nil, err
		}
		a.plan = plan
	} else {
		utxos, err := s.getUtxos(ctx)
		if err != nil {
			return nil, err
		}
		a.utxos = utxos
	}

	s.attempts.push(d.Id, a)
	return &a, nil
}

func (s *service) walletScript(ctx context.Context) ([]byte, error) {
	address, err := s.wallet.GetAddress(ctx)
	if err != nil {
		return nil, err
	}
	addr, err := btcutil.DecodeAddress(address, s.cfg.Network.Params)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet address %s: %s", address, err)
	}
	return txscript.PayToAddrScript(addr)
}

// spentByPegins returns the outpoints spent by the peg-ins already submitted.
func spentByPegins(d *domain.Deposit) (map[string]struct{}, error) {
	spent := make(map[string]struct{})
	for _, v := range d.Vaults {
		if !v.IsSubmitted() {
			continue
		}
		tx, err := connector.DecodeTx(v.PeginTx)
		if err != nil {
			return nil, fmt.Errorf("vault %d: %w", v.Index, err)
		}
		for _, in := range tx.TxIn {
			spent[in.PreviousOutPoint.String()] = struct{}{}
		}
	}
	return spent, nil
}
