package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vault-network/vault/common/pegin"
	"github.com/vault-network/vault/common/pop"
	"github.com/vault-network/vault/internal/core/domain"
	"github.com/vault-network/vault/internal/core/ports"
	"github.com/vault-network/vault/internal/metrics"
)

type service struct {
	cfg Config

	wallet        ports.BitcoinWallet
	explorer      ports.Explorer
	feeOracle     ports.FeeOracle
	builder       ports.UnfundedTxBuilder
	contract      ports.VaultContract
	vaultProvider ports.VaultProvider
	artifacts     ports.ArtifactStore
	repoManager   ports.RepoManager
	metrics       *metrics.DepositMetrics

	attempts    *attemptsMap
	subscribers *subscribersMap

	lock         *sync.Mutex
	depositLocks map[string]*sync.Mutex
	// running tells, for every deposit with a flow goroutine, whether the
	// flow must run once more after the current run.
	running      map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

func NewService(
	cfg Config,
	walletSvc ports.BitcoinWallet, explorerSvc ports.Explorer, feeOracle ports.FeeOracle,
	builder ports.UnfundedTxBuilder, contract ports.VaultContract,
	vaultProvider ports.VaultProvider, artifacts ports.ArtifactStore,
	repoManager ports.RepoManager,
) (Service, error) {
	if cfg.Network.Params == nil {
		return nil, fmt.Errorf("missing network")
	}
	if len(cfg.VaultProvider) <= 0 || len(cfg.VaultProviderPubkey) <= 0 {
		return nil, fmt.Errorf("missing vault provider")
	}
	if len(cfg.VaultKeepers) <= 0 {
		return nil, fmt.Errorf("missing vault keepers")
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc := &service{
		cfg:           cfg,
		wallet:        walletSvc,
		explorer:      explorerSvc,
		feeOracle:     feeOracle,
		builder:       builder,
		contract:      contract,
		vaultProvider: vaultProvider,
		artifacts:     artifacts,
		repoManager:   repoManager,
		metrics:       metrics.NewDepositMetrics(),
		attempts:      newAttemptsMap(),
		subscribers:   newSubscribersMap(),
		lock:          &sync.Mutex{},
		depositLocks:  make(map[string]*sync.Mutex),
		running:       make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
		wg:            &sync.WaitGroup{},
	}

	repoManager.RegisterEventsHandler(
		func(deposit *domain.Deposit) {
			go svc.propagateEvents(deposit)
		},
	)
	return svc, nil
}

// Start resumes the flows of the deposits left pending by a previous run.
// Failed ones wait for the user to retry.
func (s *service) Start() error {
	log.Debug("starting app service")

	ids, err := s.repoManager.Deposits().GetPendingDepositIds(s.ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending deposits: %s", err)
	}
	for _, id := range ids {
		deposit, err := s.repoManager.Events().Load(s.ctx, id)
		if err != nil {
			log.WithError(err).Warnf("failed to load pending deposit %s", id)
			continue
		}
		if deposit.IsFailed() || deposit.IsCompleted() {
			continue
		}
		log.Infof("resuming deposit %s at step %s", id, deposit.Stage.Code)
		s.startFlow(id)
	}
	return nil
}

func (s *service) Stop() {
	s.cancel()
	s.wg.Wait()
	log.Debug("stopped deposit flows")
	s.repoManager.Close()
	log.Debug("closed connection to db")
}

func (s *service) GetInfo(ctx context.Context) (*ServiceInfo, error) {
	address, err := s.wallet.GetAddress(ctx)
	if err != nil {
		return nil, err
	}
	pubkey, err := s.wallet.GetPublicKey(ctx)
	if err != nil {
		return nil, err
	}
	feeRates, err := s.GetFeeRates(ctx)
	if err != nil {
		return nil, err
	}

	return &ServiceInfo{
		Network:             s.cfg.Network.Name,
		Address:             address,
		PublicKey:           pubkey,
		VaultProvider:       s.cfg.VaultProvider,
		VaultProviderPubkey: s.cfg.VaultProviderPubkey,
		VaultKeepers:        s.cfg.VaultKeepers,
		FeeRates:            *feeRates,
	}, nil
}

// GetFeeRates never fails because of the fee oracle, the default network
// rates are used if it is unreachable.
func (s *service) GetFeeRates(ctx context.Context) (*pegin.FeeRateSchedule, error) {
	rates, err := s.feeOracle.GetNetworkFeeRates(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to fetch network fee rates, using defaults")
		rates = pegin.DefaultNetworkFeeRates
	}
	schedule := pegin.NewFeeRateSchedule(rates)
	return &schedule, nil
}

func (s *service) EstimatePeginFee(
	ctx context.Context, amount uint64, feeRate float64,
) (uint64, error) {
	feeRate, err := s.feeRate(ctx, feeRate)
	if err != nil {
		return 0, err
	}
	utxos, err := s.getUtxos(ctx)
	if err != nil {
		return 0, err
	}
	selection, err := pegin.SelectUtxos(utxos, amount, feeRate)
	if err != nil {
		return 0, err
	}
	return selection.Fee, nil
}

func (s *service) PlanAllocation(
	ctx context.Context, amounts []uint64, feeRate float64,
) (*pegin.AllocationPlan, error) {
	feeRate, err := s.feeRate(ctx, feeRate)
	if err != nil {
		return nil, err
	}
	a, err := s.newAttempt(ctx, amounts, feeRate)
	if err != nil {
		return nil, err
	}
	return a.plan, nil
}

// BuildPeginTx builds, without submitting it, the peg-in of a single vault
// funded by the current wallet utxos.
func (s *service) BuildPeginTx(
	ctx context.Context, amount uint64, feeRate float64,
) (*pegin.PeginTx, error) {
	feeRate, err := s.feeRate(ctx, feeRate)
	if err != nil {
		return nil, err
	}
	utxos, err := s.getUtxos(ctx)
	if err != nil {
		return nil, err
	}
	selection, err := pegin.SelectUtxos(utxos, amount, feeRate)
	if err != nil {
		return nil, err
	}
	depositorPubkey, err := s.wallet.GetPublicKey(ctx)
	if err != nil {
		return nil, err
	}
	return s.buildPeginTx(ctx, depositorPubkey, amount, selection)
}

func (s *service) StartDeposit(ctx context.Context, req DepositRequest) (string, error) {
	if _, err := pop.Message(req.Depositor); err != nil {
		return "", err
	}
	if len(req.Amounts) <= 0 || len(req.Amounts) > domain.MaxVaults {
		return "", fmt.Errorf(
			"invalid number of vaults %d, must be in range [1, %d]",
			len(req.Amounts), domain.MaxVaults,
		)
	}
	feeRate, err := s.feeRate(ctx, req.FeeRate)
	if err != nil {
		return "", err
	}
	depositorPubkey, err := s.wallet.GetPublicKey(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get depositor pubkey: %s", err)
	}

	a, err := s.newAttempt(ctx, req.Amounts, feeRate)
	if err != nil {
		return "", err
	}

	deposit := domain.NewDeposit()
	events, err := deposit.Start(
		req.Depositor, depositorPubkey, s.cfg.VaultProvider,
		req.Amounts, feeRate, a.plan.Strategy.String(),
	)
	if err != nil {
		return "", err
	}
	if a.plan.Strategy == pegin.StrategySplit {
		splitEvents, err := deposit.PrepareSplit(a.plan.SplitTransaction.TxHex)
		if err != nil {
			return "", err
		}
		events = append(events, splitEvents...)
	}

	if err := s.saveEvents(ctx, deposit.Id, events); err != nil {
		return "", err
	}
	s.attempts.push(deposit.Id, *a)

	log.WithField("deposit", deposit.Id).Infof(
		"deposit of %v sats started with strategy %s", req.Amounts, a.plan.Strategy,
	)
	s.startFlow(deposit.Id)
	return deposit.Id, nil
}

func (s *service) GetDeposit(ctx context.Context, id string) (*DepositState, error) {
	deposit, err := s.repoManager.Deposits().GetDepositWithId(ctx, id)
	if err != nil {
		return nil, err
	}
	state := newDepositState(*deposit)
	return &state, nil
}

func (s *service) ListDeposits(ctx context.Context, depositor string) ([]DepositState, error) {
	deposits, err := s.repoManager.Deposits().GetDepositsWithDepositor(ctx, depositor)
	if err != nil {
		return nil, err
	}
	states := make([]DepositState, 0, len(deposits))
	for _, d := range deposits {
		states = append(states, newDepositState(d))
	}
	return states, nil
}

// Subscribe returns a stream of the deposit states starting with the
// current one. The returned func must be called to release the stream.
func (s *service) Subscribe(
	ctx context.Context, id string,
) (<-chan DepositState, func(), error) {
	deposit, err := s.repoManager.Events().Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ch, unsubscribe := s.subscribers.add(id, newDepositState(*deposit))
	return ch, unsubscribe, nil
}

// RetryDeposit clears the error of a failed deposit. Before any peg-in is
// submitted the utxos are snapshotted again and the plan recomputed,
// otherwise the flow resumes at the failed step.
func (s *service) RetryDeposit(ctx context.Context, id string) error {
	unlock := s.lockDeposit(id)
	defer unlock()

	deposit, err := s.repoManager.Events().Load(ctx, id)
	if err != nil {
		return err
	}
	if !deposit.IsFailed() {
		return fmt.Errorf("deposit %s is not failed", id)
	}

	var a *attempt
	strategy := deposit.Strategy
	if deposit.CanRestart() {
		a, err = s.newAttempt(ctx, deposit.Amounts(), deposit.FeeRate)
		if err != nil {
			return err
		}
		strategy = a.plan.Strategy.String()
	}

	events, err := deposit.Retry(strategy)
	if err != nil {
		return err
	}
	if a != nil && a.plan.Strategy == pegin.StrategySplit {
		splitEvents, err := deposit.PrepareSplit(a.plan.SplitTransaction.TxHex)
		if err != nil {
			return err
		}
		events = append(events, splitEvents...)
	}

	if err := s.saveEvents(ctx, id, events); err != nil {
		return err
	}
	if a != nil {
		s.attempts.push(id, *a)
	}

	log.WithField("deposit", id).Infof("deposit retried at step %s", deposit.Stage.Code)
	s.startFlow(id)
	return nil
}

func (s *service) ConfirmArtifacts(ctx context.Context, id string) error {
	if err := s.update(ctx, id, func(d *domain.Deposit) ([]domain.DepositEvent, error) {
		return d.ConfirmArtifacts()
	}); err != nil {
		return err
	}
	s.startFlow(id)
	return nil
}

func (s *service) GetArtifacts(ctx context.Context, id string) ([]byte, error) {
	return s.artifacts.Get(ctx, id)
}

// CloseDeposit ends the UI streams of the deposit once the user is no
// longer needed, the flow keeps running in background if not ended.
func (s *service) CloseDeposit(ctx context.Context, id string) error {
	deposit, err := s.repoManager.Events().Load(ctx, id)
	if err != nil {
		return err
	}
	if !deposit.CanCloseModal() {
		return fmt.Errorf("deposit %s cannot be closed at step %s", id, deposit.Stage.Code)
	}
	s.subscribers.closeAll(id)
	return nil
}

func (s *service) feeRate(ctx context.Context, feeRate float64) (float64, error) {
	schedule, err := s.GetFeeRates(ctx)
	if err != nil {
		return 0, err
	}
	if feeRate <= 0 {
		return schedule.Default, nil
	}
	if !schedule.Contains(feeRate) {
		return 0, fmt.Errorf(
			"fee rate %v out of range [%v, %v]", feeRate, schedule.Min, schedule.Max,
		)
	}
	return feeRate, nil
}

func (s *service) getUtxos(ctx context.Context) ([]pegin.UTXO, error) {
	address, err := s.wallet.GetAddress(ctx)
	if err != nil {
		return nil, err
	}
	utxos, err := s.explorer.GetUtxos(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wallet utxos: %w", err)
	}
	return utxos, nil
}

func (s *service) newAttempt(
	ctx context.Context, amounts []uint64, feeRate float64,
) (*attempt, error) {
	utxos, err := s.getUtxos(ctx)
	if err != nil {
		return nil, err
	}
	splitParams, err := s.splitParams(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := pegin.PlanAllocation(amounts, utxos, feeRate, *splitParams)
	if err != nil {
		return nil, err
	}
	return &attempt{utxos, plan}, nil
}

func (s *service) splitParams(ctx context.Context) (*pegin.SplitParams, error) {
	address, err := s.wallet.GetAddress(ctx)
	if err != nil {
		return nil, err
	}
	internalKey, err := s.wallet.GetTaprootInternalKey(ctx)
	if err != nil {
		return nil, err
	}
	return &pegin.SplitParams{
		Address:            address,
		Network:            s.cfg.Network.Params,
		TaprootInternalKey: internalKey,
	}, nil
}

// update applies the transition to the latest state of the deposit and
// persists the resulting events.
func (s *service) update(
	ctx context.Context, id string,
	transition func(d *domain.Deposit) ([]domain.DepositEvent, error),
) error {
	unlock := s.lockDeposit(id)
	defer unlock()

	deposit, err := s.repoManager.Events().Load(ctx, id)
	if err != nil {
		return err
	}
	events, err := transition(deposit)
	if err != nil {
		return err
	}
	return s.saveEvents(ctx, id, events)
}

func (s *service) saveEvents(
	ctx context.Context, id string, events []domain.DepositEvent,
) error {
	if len(events) <= 0 {
		return nil
	}
	deposit, err := s.repoManager.Events().Save(ctx, id, events...)
	if err != nil {
		return err
	}
	return s.repoManager.Deposits().AddOrUpdateDeposit(ctx, *deposit)
}

func (s *service) lockDeposit(id string) func() {
	s.lock.Lock()
	l, ok := s.depositLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.depositLocks[id] = l
	}
	s.lock.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *service) propagateEvents(deposit *domain.Deposit) {
	events := deposit.Events()
	if len(events) <= 0 {
		return
	}

	switch e := events[len(events)-1].(type) {
	case domain.DepositFailed:
		s.metrics.RecordFailure(e.Step.String())
	case domain.BtcBroadcasted:
		s.metrics.RecordTransition(deposit.Stage.Code.String())
		s.metrics.RecordCompletion(
			time.Duration(deposit.UpdatedAt-deposit.CreatedAt) * time.Second,
		)
	case domain.DepositCreated, domain.PopSigned, domain.PeginSubmitted,
		domain.PayoutsSigned, domain.ArtifactsDownloaded, domain.DepositRetried:
		s.metrics.RecordTransition(deposit.Stage.Code.String())
	}

	s.subscribers.publish(newDepositState(*deposit))
}
