package rest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/internal/service/report"
	"github.com/heartmarshall/safety-pulse/internal/service/trust"
)

var _ reportService = &reportServiceMock{}

type reportServiceMock struct {
	SubmitFunc           func(ctx context.Context, in report.SubmitInput) (*report.SubmitResult, error)
	ListReportsFunc func(ctx context.Context, in report.ListInput) ([]domain.Signal, error)
	CastVoteFunc       func(ctx context.Context, signalID uuid.UUID, isTrue bool) (*report.VoteResult, error)
	RemoveVoteFunc   func(ctx context.Context, signalID uuid.UUID) (*report.VoteResult, error)
	GetSignalFunc     func(ctx context.Context, signalID uuid.UUID) (domain.Signal, error)
	GetSummaryFunc   func(ctx context.Context, signalID uuid.UUID) (trust.Summary, error)
	CheckVoteFunc     func(ctx context.Context, signalID uuid.UUID) (*report.VoteCheck, error)
	DeleteFunc           func(ctx context.Context, signalID uuid.UUID, in report.DeleteInput) (*report.DeleteResult, error)

	calls struct {
		Submit []struct {
			Ctx context.Context
			In  report.SubmitInput
		}
		ListReports []struct {
			Ctx context.Context
			In  report.ListInput
		}
		CastVote []struct {
			Ctx      context.Context
			SignalID uuid.UUID
			IsTrue   bool
		}
		RemoveVote []struct {
			Ctx      context.Context
			SignalID uuid.UUID
		}
		GetSignal []struct {
			Ctx      context.Context
			SignalID uuid.UUID
		}
		GetSummary []struct {
			Ctx      context.Context
			SignalID uuid.UUID
		}
		CheckVote []struct {
			Ctx      context.Context
			SignalID uuid.UUID
		}
		Delete []struct {
			Ctx      context.Context
			SignalID uuid.UUID
			In       report.DeleteInput
		}
	}
	lockSubmit      sync.RWMutex
	lockListReports sync.RWMutex
	lockCastVote    sync.RWMutex
	lockRemoveVote  sync.RWMutex
	lockGetSignal   sync.RWMutex
	lockGetSummary  sync.RWMutex
	lockCheckVote   sync.RWMutex
	lockDelete      sync.RWMutex
}

func (mock *reportServiceMock) Submit(ctx context.Context, in report.SubmitInput) (*report.SubmitResult, error) {
	if mock.SubmitFunc == nil {
		panic("reportServiceMock.SubmitFunc: method is nil but reportService.Submit was just called")
	}
	callInfo := struct {
		Ctx context.Context
		In  report.SubmitInput
	}{Ctx: ctx, In: in}
	mock.lockSubmit.Lock()
	mock.calls.Submit = append(mock.calls.Submit, callInfo)
	mock.lockSubmit.Unlock()
	return mock.SubmitFunc(ctx, in)
}

func (mock *reportServiceMock) SubmitCalls() []struct {
	Ctx context.Context
	In  report.SubmitInput
	} {
	mock.lockSubmit.RLock()
	calls := mock.calls.Submit
	mock.lockSubmit.RUnlock()
	return calls
}

func (mock *reportServiceMock) ListReports(ctx context.Context, in report.ListInput) ([]domain.Signal, error) {
	if mock.ListReportsFunc == nil {
		panic("reportServiceMock.ListReportsFunc: method is nil but reportService.ListReports was just called")
	}
	callInfo := struct {
		Ctx context.Context
		In  report.ListInput
	}{Ctx: ctx, In: in}
	mock.lockListReports.Lock()
	mock.calls.ListReports = append(mock.calls.ListReports, callInfo)
	mock.lockListReports.Unlock()
	return mock.ListReportsFunc(ctx, in)
}

func (mock *reportServiceMock) ListReportsCalls() []struct {
	Ctx context.Context
	In  report.ListInput
	} {
	mock.lockListReports.RLock()
	calls := mock.calls.ListReports
	mock.lockListReports.RUnlock()
	return calls
}

func (mock *reportServiceMock) CastVote(ctx context.Context, signalID uuid.UUID, isTrue bool) (*report.VoteResult, error) {
	if mock.CastVoteFunc == nil {
		panic("reportServiceMock.CastVoteFunc: method is nil but reportService.CastVote was just called")
	}
	callInfo := struct {
		Ctx      context.Context
		SignalID uuid.UUID
		IsTrue   bool
	}{Ctx: ctx, SignalID: signalID, IsTrue: isTrue}
	mock.lockCastVote.Lock()
	mock.calls.CastVote = append(mock.calls.CastVote, callInfo)
	mock.lockCastVote.Unlock()
	return mock.CastVoteFunc(ctx, signalID, isTrue)
}

func (mock *reportServiceMock) CastVoteCalls() []struct {
	Ctx      context.Context
	SignalID uuid.UUID
	IsTrue   bool
	} {
	mock.lockCastVote.RLock()
	calls := mock.calls.CastVote
	mock.lockCastVote.RUnlock()
	return calls
}

func (mock *reportServiceMock) RemoveVote(ctx context.Context, signalID uuid.UUID) (*report.VoteResult, error) {
	if mock.RemoveVoteFunc == nil {
		panic("reportServiceMock.RemoveVoteFunc: method is nil but reportService.RemoveVote was just called")
	}
	callInfo := struct {
		Ctx      context.Context
		SignalID uuid.UUID
	}{Ctx: ctx, SignalID: signalID}
	mock.lockRemoveVote.Lock()
	mock.calls.RemoveVote = append(mock.calls.RemoveVote, callInfo)
	mock.lockRemoveVote.Unlock()
	return mock.RemoveVoteFunc(ctx, signalID)
}

func (mock *reportServiceMock) RemoveVoteCalls() []struct {
	Ctx      context.Context
	SignalID uuid.UUID
	} {
	mock.lockRemoveVote.RLock()
	calls := mock.calls.RemoveVote
	mock.lockRemoveVote.RUnlock()
	return calls
}

func (mock *reportServiceMock) GetSignal(ctx context.Context, signalID uuid.UUID) (domain.Signal, error) {
	if mock.GetSignalFunc == nil {
		panic("reportServiceMock.GetSignalFunc: method is nil but reportService.GetSignal was just called")
	}
	callInfo := struct {
		Ctx      context.Context
		SignalID uuid.UUID
	}{Ctx: ctx, SignalID: signalID}
	mock.lockGetSignal.Lock()
	mock.calls.GetSignal = append(mock.calls.GetSignal, callInfo)
	mock.lockGetSignal.Unlock()
	return mock.GetSignalFunc(ctx, signalID)
}

func (mock *reportServiceMock) GetSignalCalls() []struct {
	Ctx      context.Context
	SignalID uuid.UUID
	} {
	mock.lockGetSignal.RLock()
	calls := mock.calls.GetSignal
	mock.lockGetSignal.RUnlock()
	return calls
}

func (mock *reportServiceMock) GetSummary(ctx context.Context, signalID uuid.UUID) (trust.Summary, error) {
	if mock.GetSummaryFunc == nil {
		panic("reportServiceMock.GetSummaryFunc: method is nil but reportService.GetSummary was just called")
	}
	callInfo := struct {
		Ctx      context.Context
		SignalID uuid.UUID
	}{Ctx: ctx, SignalID: signalID}
	mock.lockGetSummary.Lock()
	mock.calls.GetSummary = append(mock.calls.GetSummary, callInfo)
	mock.lockGetSummary.Unlock()
	return mock.GetSummaryFunc(ctx, signalID)
}

func (mock *reportServiceMock) GetSummaryCalls() []struct {
	Ctx      context.Context
	SignalID uuid.UUID
	} {
	mock.lockGetSummary.RLock()
	calls := mock.calls.GetSummary
	mock.lockGetSummary.RUnlock()
	return calls
}

func (mock *reportServiceMock) CheckVote(ctx context.Context, signalID uuid.UUID) (*report.VoteCheck, error) {
	if mock.CheckVoteFunc == nil {
		panic("reportServiceMock.CheckVoteFunc: method is nil but reportService.CheckVote was just called")
	}
	callInfo := struct {
		Ctx      context.Context
		SignalID uuid.UUID
	}{Ctx: ctx, SignalID: signalID}
	mock.lockCheckVote.Lock()
	mock.calls.CheckVote = append(mock.calls.CheckVote, callInfo)
	mock.lockCheckVote.Unlock()
	return mock.CheckVoteFunc(ctx, signalID)
}

func (mock *reportServiceMock) CheckVoteCalls() []struct {
	Ctx      context.Context
	SignalID uuid.UUID
	} {
	mock.lockCheckVote.RLock()
	calls := mock.calls.CheckVote
	mock.lockCheckVote.RUnlock()
	return calls
}

func (mock *reportServiceMock) Delete(ctx context.Context, signalID uuid.UUID, in report.DeleteInput) (*report.DeleteResult, error) {
	if mock.DeleteFunc == nil {
		panic("reportServiceMock.DeleteFunc: method is nil but reportService.Delete was just called")
	}
	callInfo := struct {
		Ctx      context.Context
		SignalID uuid.UUID
		In       report.DeleteInput
	}{Ctx: ctx, SignalID: signalID, In: in}
	mock.lockDelete.Lock()
	mock.calls.Delete = append(mock.calls.Delete, callInfo)
	mock.lockDelete.Unlock()
	return mock.DeleteFunc(ctx, signalID, in)
}

func (mock *reportServiceMock) DeleteCalls() []struct {
	Ctx      context.Context
	SignalID uuid.UUID
	In       report.DeleteInput
	} {
	mock.lockDelete.RLock()
	calls := mock.calls.Delete
	mock.lockDelete.RUnlock()
	return calls
}
