package application

import (
	"sync"

	"github.com/google/uuid"
	"github.com/vault-network/vault/common/pegin"
)

// attempt is what a deposit flow computes once per try and keeps in memory:
// the wallet utxos snapshot and the allocation plan derived from it.
// A flow resumed after a restart has no plan and funds its remaining vaults
// through regular selection.
type attempt struct {
	utxos []pegin.UTXO
	plan  *pegin.AllocationPlan
}

func (a attempt) selection(
	vaultIndex int, amount uint64, feeRate float64, spent map[string]struct{},
) (*pegin.SelectionResult, error) {
	if a.plan != nil {
		return a.plan.Selection(vaultIndex, a.utxos, feeRate)
	}

	utxos := make([]pegin.UTXO, 0, len(a.utxos))
	for _, u := range a.utxos {
		if _, ok := spent[u.String()]; !ok {
			utxos = append(utxos, u)
		}
	}
	return pegin.SelectUtxos(utxos, amount, feeRate)
}

type attemptsMap struct {
	lock     *sync.RWMutex
	attempts map[string]attempt
}

func newAttemptsMap() *attemptsMap {
	return &attemptsMap{&sync.RWMutex{}, make(map[string]attempt)}
}

func (m *attemptsMap) push(id string, a attempt) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.attempts[id] = a
}

func (m *attemptsMap) get(id string) (attempt, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	a, ok := m.attempts[id]
	return a, ok
}

func (m *attemptsMap) delete(id string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.attempts, id)
}

const subscriberBufferSize = 16

// subscribersMap fans deposit states out to the UI streams. States older
// than the last one published for a deposit are dropped, so that each stream
// only moves forward.
type subscribersMap struct {
	lock        *sync.Mutex
	subscribers map[string]map[string]chan DepositState
	versions    map[string]uint
}

func newSubscribersMap() *subscribersMap {
	return &subscribersMap{
		lock:        &sync.Mutex{},
		subscribers: make(map[string]map[string]chan DepositState),
		versions:    make(map[string]uint),
	}
}

func (m *subscribersMap) add(depositId string, current DepositState) (<-chan DepositState, func()) {
	m.lock.Lock()
	defer m.lock.Unlock()

	ch := make(chan DepositState, subscriberBufferSize)
	ch <- current

	subId := uuid.New().String()
	if _, ok := m.subscribers[depositId]; !ok {
		m.subscribers[depositId] = make(map[string]chan DepositState)
	}
	m.subscribers[depositId][subId] = ch
	if current.version > m.versions[depositId] {
		m.versions[depositId] = current.version
	}

	unsubscribe := func() {
		m.lock.Lock()
		defer m.lock.Unlock()

		subs, ok := m.subscribers[depositId]
		if !ok {
			return
		}
		if ch, ok := subs[subId]; ok {
			delete(subs, subId)
			close(ch)
		}
		if len(subs) <= 0 {
			delete(m.subscribers, depositId)
		}
	}
	return ch, unsubscribe
}

func (m *subscribersMap) publish(state DepositState) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if state.version < m.versions[state.Id] {
		return
	}
	m.versions[state.Id] = state.version

	for _, ch := range m.subscribers[state.Id] {
		select {
		case ch <- state:
		default:
			// slow reader, drop the oldest state to make room for the latest
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}

// closeAll ends every stream of the given deposit.
func (m *subscribersMap) closeAll(depositId string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, ch := range m.subscribers[depositId] {
		close(ch)
	}
	delete(m.subscribers, depositId)
}

func (m *subscribersMap) count(depositId string) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.subscribers[depositId])
}
