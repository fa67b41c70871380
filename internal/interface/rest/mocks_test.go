package restservice

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vault-network/vault/common/pegin"
	"github.com/vault-network/vault/internal/core/application"
)

type mockedAppService struct {
	mock.Mock
}

func (m *mockedAppService) Start() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockedAppService) Stop() {
	m.Called()
}

func (m *mockedAppService) GetInfo(ctx context.Context) (*application.ServiceInfo, error) {
	args := m.Called(ctx)

	var res *application.ServiceInfo
	if a := args.Get(0); a != nil {
		res = a.(*application.ServiceInfo)
	}
	return res, args.Error(1)
}

func (m *mockedAppService) GetFeeRates(ctx context.Context) (*pegin.FeeRateSchedule, error) {
	args := m.Called(ctx)

	var res *pegin.FeeRateSchedule
	if a := args.Get(0); a != nil {
		res = a.(*pegin.FeeRateSchedule)
	}
	return res, args.Error(1)
}

func (m *mockedAppService) EstimatePeginFee(
	ctx context.Context, amount uint64, feeRate float64,
) (uint64, error) {
	args := m.Called(ctx, amount, feeRate)

	var res uint64
	if a := args.Get(0); a != nil {
		res = a.(uint64)
	}
	return res, args.Error(1)
}

func (m *mockedAppService) PlanAllocation(
	ctx context.Context, amounts []uint64, feeRate float64,
) (*pegin.AllocationPlan, error) {
	args := m.Called(ctx, amounts, feeRate)

	var res *pegin.AllocationPlan
	if a := args.Get(0); a != nil {
		res = a.(*pegin.AllocationPlan)
	}
	return res, args.Error(1)
}

func (m *mockedAppService) BuildPeginTx(
	ctx context.Context, amount uint64, feeRate float64,
) (*pegin.PeginTx, error) {
	args := m.Called(ctx, amount, feeRate)

	var res *pegin.PeginTx
	if a := args.Get(0); a != nil {
		res = a.(*pegin.PeginTx)
	}
	return res, args.Error(1)
}

func (m *mockedAppService) StartDeposit(
	ctx context.Context, req application.DepositRequest,
) (string, error) {
	args := m.Called(ctx, req)

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res, args.Error(1)
}

func (m *mockedAppService) GetDeposit(
	ctx context.Context, id string,
) (*application.DepositState, error) {
	args := m.Called(ctx, id)

	var res *application.DepositState
	if a := args.Get(0); a != nil {
		res = a.(*application.DepositState)
	}
	return res, args.Error(1)
}

func (m *mockedAppService) ListDeposits(
	ctx context.Context, depositor string,
) ([]application.DepositState, error) {
	args := m.Called(ctx, depositor)

	var res []application.DepositState
	if a := args.Get(0); a != nil {
		res = a.([]application.DepositState)
	}
	return res, args.Error(1)
}

func (m *mockedAppService) Subscribe(
	ctx context.Context, id string,
) (<-chan application.DepositState, func(), error) {
	args := m.Called(ctx, id)

	var ch <-chan application.DepositState
	if a := args.Get(0); a != nil {
		ch = a.(<-chan application.DepositState)
	}
	var unsubscribe func()
	if a := args.Get(1); a != nil {
		unsubscribe = a.(func())
	}
	return ch, unsubscribe, args.Error(2)
}

func (m *mockedAppService) RetryDeposit(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockedAppService) ConfirmArtifacts(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockedAppService) GetArtifacts(ctx context.Context, id string) ([]byte, error) {
	args := m.Called(ctx, id)

	var res []byte
	if a := args.Get(0); a != nil {
		res = a.([]byte)
	}
	return res, args.Error(1)
}

func (m *mockedAppService) CloseDeposit(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
