package report

import (
	"github.com/heartmarshall/safety-pulse/internal/domain"
	"sync"
)

var _ notifier = &notifierMock{}

type notifierMock struct {
	SignalCreatedFunc func(sig domain.Signal)
	SignalDeletedFunc func(sig domain.Signal)
	VoteChangedFunc   func(sig domain.Signal, vote domain.Vote, removed bool)
	TilesChangedFunc  func(tiles []domain.PulseTile, removed []string, version uint64)
	SpikeDetectedFunc func(spike domain.Spike)

	calls struct {
		SignalCreated []struct {
			Sig domain.Signal
		}
		SignalDeleted []struct {
			Sig domain.Signal
		}
		VoteChanged []struct {
			Sig     domain.Signal
			Vote    domain.Vote
			Removed bool
		}
		TilesChanged []struct {
			Tiles   []domain.PulseTile
			Removed []string
			Version uint64
		}
		SpikeDetected []struct {
			Spike domain.Spike
		}
	}
	lockSignalCreated sync.RWMutex
	lockSignalDeleted sync.RWMutex
	lockVoteChanged   sync.RWMutex
	lockTilesChanged  sync.RWMutex
	lockSpikeDetected sync.RWMutex
}

func (mock *notifierMock) SignalCreated(sig domain.Signal) {
	if mock.SignalCreatedFunc == nil {
		panic("notifierMock.SignalCreatedFunc: method is nil but notifier.SignalCreated was just called")
	}
	callInfo := struct {
		Sig domain.Signal
	}{Sig: sig}
	mock.lockSignalCreated.Lock()
	mock.calls.SignalCreated = append(mock.calls.SignalCreated, callInfo)
	mock.lockSignalCreated.Unlock()
	mock.SignalCreatedFunc(sig)
}

func (mock *notifierMock) SignalCreatedCalls() []struct {
	Sig domain.Signal
} {
	mock.lockSignalCreated.RLock()
	calls := mock.calls.SignalCreated
	mock.lockSignalCreated.RUnlock()
	return calls
}

func (mock *notifierMock) SignalDeleted(sig domain.Signal) {
	if mock.SignalDeletedFunc == nil {
		panic("notifierMock.SignalDeletedFunc: method is nil but notifier.SignalDeleted was just called")
	}
	callInfo := struct {
		Sig domain.Signal
	}{Sig: sig}
	mock.lockSignalDeleted.Lock()
	mock.calls.SignalDeleted = append(mock.calls.SignalDeleted, callInfo)
	mock.lockSignalDeleted.Unlock()
	mock.SignalDeletedFunc(sig)
}

func (mock *notifierMock) SignalDeletedCalls() []struct {
	Sig domain.Signal
} {
	mock.lockSignalDeleted.RLock()
	calls := mock.calls.SignalDeleted
	mock.lockSignalDeleted.RUnlock()
	return calls
}

func (mock *notifierMock) VoteChanged(sig domain.Signal, vote domain.Vote, removed bool) {
	if mock.VoteChangedFunc == nil {
		panic("notifierMock.VoteChangedFunc: method is nil but notifier.VoteChanged was just called")
	}
	callInfo := struct {
		Sig     domain.Signal
		Vote    domain.Vote
		Removed bool
	}{Sig: sig, Vote: vote, Removed: removed}
	mock.lockVoteChanged.Lock()
	mock.calls.VoteChanged = append(mock.calls.VoteChanged, callInfo)
	mock.lockVoteChanged.Unlock()
	mock.VoteChangedFunc(sig, vote, removed)
}

func (mock *notifierMock) VoteChangedCalls() []struct {
	Sig     domain.Signal
	Vote    domain.Vote
	Removed bool
} {
	mock.lockVoteChanged.RLock()
	calls := mock.calls.VoteChanged
	mock.lockVoteChanged.RUnlock()
	return calls
}

func (mock *notifierMock) TilesChanged(tiles []domain.PulseTile, removed []string, version uint64) {
	if mock.TilesChangedFunc == nil {
		panic("notifierMock.TilesChangedFunc: method is nil but notifier.TilesChanged was just called")
	}
	callInfo := struct {
		Tiles   []domain.PulseTile
		Removed []string
		Version uint64
	}{Tiles: tiles, Removed: removed, Version: version}
	mock.lockTilesChanged.Lock()
	mock.calls.TilesChanged = append(mock.calls.TilesChanged, callInfo)
	mock.lockTilesChanged.Unlock()
	mock.TilesChangedFunc(tiles, removed, version)
}

func (mock *notifierMock) TilesChangedCalls() []struct {
	Tiles   []domain.PulseTile
	Removed []string
	Version uint64
} {
	mock.lockTilesChanged.RLock()
	calls := mock.calls.TilesChanged
	mock.lockTilesChanged.RUnlock()
	return calls
}

func (mock *notifierMock) SpikeDetected(spike domain.Spike) {
	if mock.SpikeDetectedFunc == nil {
		panic("notifierMock.SpikeDetectedFunc: method is nil but notifier.SpikeDetected was just called")
	}
	callInfo := struct {
		Spike domain.Spike
	}{Spike: spike}
	mock.lockSpikeDetected.Lock()
	mock.calls.SpikeDetected = append(mock.calls.SpikeDetected, callInfo)
	mock.lockSpikeDetected.Unlock()
	mock.SpikeDetectedFunc(spike)
}

func (mock *notifierMock) SpikeDetectedCalls() []struct {
	Spike domain.Spike
} {
	mock.lockSpikeDetected.RLock()
	calls := mock.calls.SpikeDetected
	mock.lockSpikeDetected.RUnlock()
	return calls
}
