package restservice

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vault-network/vault/common/pegin"
	"github.com/vault-network/vault/internal/core/application"
	"github.com/vault-network/vault/internal/core/domain"
)

const (
	depositId = "0d5f3e0c-6c1b-4f7e-9d0a-6b8b0b2a3c4d"
	depositor = "0xab5801a7d398351b8be11c439e05c5b3259aec9b"
)

// closeNotifyingRecorder lets gin stream responses to a recorder.
type closeNotifyingRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyingRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func serve(t *testing.T, appSvc application.Service, method, path, body string) *httptest.ResponseRecorder {
	router := newRouter(Config{EnableMetrics: true, CorsOrigins: []string{"*"}}, appSvc)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := &closeNotifyingRecorder{httptest.NewRecorder(), make(chan bool, 1)}
	router.ServeHTTP(rec, req)
	return rec.ResponseRecorder
}

func TestHandlers(t *testing.T) {
	schedule := &pegin.FeeRateSchedule{Min: 1, Default: 5, Max: 20}
	state := &application.DepositState{
		Id:        depositId,
		Depositor: depositor,
		Step:      domain.StepSignPop.String(),
		Strategy:  pegin.StrategySingle.String(),
	}

	appSvc := &mockedAppService{}
	appSvc.On("GetFeeRates", mock.Anything).Return(schedule, nil)
	appSvc.On("EstimatePeginFee", mock.Anything, uint64(100_000), float64(0)).
		Return(uint64(1_500), nil)
	appSvc.On("EstimatePeginFee", mock.Anything, uint64(900_000), float64(0)).
		Return(nil, pegin.ErrInsufficientFunds)
	appSvc.On("PlanAllocation", mock.Anything, []uint64{100_000, 50_000}, float64(3)).
		Return(&pegin.AllocationPlan{Strategy: pegin.StrategyMultiUtxo}, nil)
	appSvc.On("StartDeposit", mock.Anything, application.DepositRequest{
		Depositor: depositor, Amounts: []uint64{100_000},
	}).Return(depositId, nil)
	appSvc.On("GetDeposit", mock.Anything, depositId).Return(state, nil)
	appSvc.On("GetDeposit", mock.Anything, "unknown").
		Return(nil, fmt.Errorf("%w: unknown", domain.ErrDepositNotFound))
	appSvc.On("ListDeposits", mock.Anything, depositor).
		Return([]application.DepositState{*state}, nil)
	appSvc.On("RetryDeposit", mock.Anything, depositId).
		Return(fmt.Errorf("deposit %s is not failed", depositId))
	appSvc.On("ConfirmArtifacts", mock.Anything, depositId).Return(nil)
	appSvc.On("GetArtifacts", mock.Anything, depositId).Return([]byte(`{"depositId":"x"}`), nil)
	appSvc.On("CloseDeposit", mock.Anything, depositId).Return(nil)

	fixtures := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
		expectedBody   string
	}{
		{"health", http.MethodGet, "/healthz", "", http.StatusOK, `"ok"`},
		{"fee rates", http.MethodGet, "/v1/fees", "", http.StatusOK, `"defaultFeeRate":5`},
		{
			"estimate fee", http.MethodPost, "/v1/fees/estimate", `{"amount":100000}`,
			http.StatusOK, `"fee":1500`,
		},
		{
			"estimate fee insufficient funds", http.MethodPost, "/v1/fees/estimate",
			`{"amount":900000}`, http.StatusBadRequest, "insufficient funds",
		},
		{
			"estimate fee missing amount", http.MethodPost, "/v1/fees/estimate", `{}`,
			http.StatusBadRequest, "error",
		},
		{
			"plan allocation", http.MethodPost, "/v1/allocation",
			`{"amounts":[100000,50000],"feeRate":3}`, http.StatusOK, `"strategy":"MULTI_UTXO"`,
		},
		{
			"start deposit", http.MethodPost, "/v1/deposits",
			fmt.Sprintf(`{"depositor":"%s","amounts":[100000]}`, depositor),
			http.StatusCreated, depositId,
		},
		{
			"start deposit malformed", http.MethodPost, "/v1/deposits", `{"amounts":`,
			http.StatusBadRequest, "error",
		},
		{
			"get deposit", http.MethodGet, "/v1/deposits/" + depositId, "",
			http.StatusOK, `"step":"SIGN_POP"`,
		},
		{
			"get unknown deposit", http.MethodGet, "/v1/deposits/unknown", "",
			http.StatusNotFound, "deposit not found",
		},
		{
			"list deposits", http.MethodGet, "/v1/deposits?depositor=" + depositor, "",
			http.StatusOK, depositId,
		},
		{
			"list deposits missing depositor", http.MethodGet, "/v1/deposits", "",
			http.StatusBadRequest, "missing depositor",
		},
		{
			"retry deposit not failed", http.MethodPost, "/v1/deposits/" + depositId + "/retry", "",
			http.StatusBadRequest, "is not failed",
		},
		{
			"confirm artifacts", http.MethodPost,
			"/v1/deposits/" + depositId + "/artifacts/confirm", "", http.StatusAccepted, "",
		},
		{
			"get artifacts", http.MethodGet, "/v1/deposits/" + depositId + "/artifacts", "",
			http.StatusOK, `"depositId"`,
		},
		{
			"close deposit", http.MethodPost, "/v1/deposits/" + depositId + "/close", "",
			http.StatusNoContent, "",
		},
	}

	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			rec := serve(t, appSvc, f.method, f.path, f.body)
			require.Equal(t, f.expectedStatus, rec.Code, rec.Body.String())
			require.Contains(t, rec.Body.String(), f.expectedBody)
		})
	}

	t.Run("metrics", func(t *testing.T) {
		rec := serve(t, appSvc, http.MethodGet, "/metrics", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "vault_server_http_requests_total")
	})

	t.Run("artifacts attachment", func(t *testing.T) {
		rec := serve(t, appSvc, http.MethodGet, "/v1/deposits/"+depositId+"/artifacts", "")
		require.Contains(t, rec.Header().Get("Content-Disposition"), "deposit-"+depositId+".json")
	})

	t.Run("cors", func(t *testing.T) {
		router := newRouter(Config{CorsOrigins: []string{"https://app.example"}}, appSvc)
		req := httptest.NewRequest(http.MethodOptions, "/v1/fees", nil)
		req.Header.Set("Origin", "https://app.example")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestStreamDeposit(t *testing.T) {
	ch := make(chan application.DepositState, 3)
	ch <- application.DepositState{Id: depositId, Step: domain.StepSignPop.String()}
	ch <- application.DepositState{Id: depositId, Step: domain.StepBroadcastBtc.String()}
	ch <- application.DepositState{
		Id: depositId, Step: domain.StepCompleted.String(), Completed: true,
	}

	unsubscribed := false
	appSvc := &mockedAppService{}
	appSvc.On("Subscribe", mock.Anything, depositId).Return(
		(<-chan application.DepositState)(ch), func() { unsubscribed = true }, nil,
	)
	appSvc.On("Subscribe", mock.Anything, "unknown").Return(
		nil, nil, fmt.Errorf("%w: unknown", domain.ErrDepositNotFound),
	)

	rec := serve(t, appSvc, http.MethodGet, "/v1/deposits/"+depositId+"/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, unsubscribed)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	events := make([]application.DepositState, 0)
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		var state application.DepositState
		require.NoError(t, json.Unmarshal([]byte(data), &state))
		events = append(events, state)
	}
	require.Len(t, events, 3)
	require.True(t, events[2].Completed)

	rec = serve(t, appSvc, http.MethodGet, "/v1/deposits/unknown/events", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
