package router

import (
	"context"

	"github.com/angelmondragon/pos-backend/internal/analytics/types"
)

type fakeWriter struct {
	sales  []types.SaleEventRow
	stocks []types.StockEventRow
	err    error
}

func (f *fakeWriter) InsertSale(_ context.Context, row types.SaleEventRow) error {
	if f.err != nil {
		return f.err
	}
	f.sales = append(f.sales, row)
	return nil
}

func (f *fakeWriter) InsertStock(_ context.Context, row types.StockEventRow) error {
	if f.err != nil {
		return f.err
	}
	f.stocks = append(f.stocks, row)
	return nil
}
