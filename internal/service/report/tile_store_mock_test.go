package report

import (
	"context"
	"github.com/heartmarshall/safety-pulse/internal/domain"
	"sync"
)

var _ tileStore = &tileStoreMock{}

type tileStoreMock struct {
	UpsertTileFunc func(ctx context.Context, rec domain.TileRecord) error
	ListTilesFunc  func(ctx context.Context) ([]domain.TileRecord, error)

	calls struct {
		UpsertTile []struct {
			Ctx context.Context
			Rec domain.TileRecord
		}
		ListTiles []struct {
			Ctx context.Context
		}
	}
	lockUpsertTile sync.RWMutex
	lockListTiles  sync.RWMutex
}

func (mock *tileStoreMock) UpsertTile(ctx context.Context, rec domain.TileRecord) error {
	if mock.UpsertTileFunc == nil {
		panic("tileStoreMock.UpsertTileFunc: method is nil but tileStore.UpsertTile was just called")
	}
	callInfo := struct {
		Ctx context.Context
		Rec domain.TileRecord
	}{Ctx: ctx, Rec: rec}
	mock.lockUpsertTile.Lock()
	mock.calls.UpsertTile = append(mock.calls.UpsertTile, callInfo)
	mock.lockUpsertTile.Unlock()
	return mock.UpsertTileFunc(ctx, rec)
}

func (mock *tileStoreMock) UpsertTileCalls() []struct {
	Ctx context.Context
	Rec domain.TileRecord
} {
	mock.lockUpsertTile.RLock()
	calls := mock.calls.UpsertTile
	mock.lockUpsertTile.RUnlock()
	return calls
}

func (mock *tileStoreMock) ListTiles(ctx context.Context) ([]domain.TileRecord, error) {
	if mock.ListTilesFunc == nil {
		panic("tileStoreMock.ListTilesFunc: method is nil but tileStore.ListTiles was just called")
	}
	callInfo := struct {
		Ctx context.Context
	}{Ctx: ctx}
	mock.lockListTiles.Lock()
	mock.calls.ListTiles = append(mock.calls.ListTiles, callInfo)
	mock.lockListTiles.Unlock()
	return mock.ListTilesFunc(ctx)
}

func (mock *tileStoreMock) ListTilesCalls() []struct {
	Ctx context.Context
} {
	mock.lockListTiles.RLock()
	calls := mock.calls.ListTiles
	mock.lockListTiles.RUnlock()
	return calls
}
