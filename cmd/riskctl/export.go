package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"klendrisk/native/lending"
)

type reserveRow struct {
	Market              string  `parquet:"name=market, type=BYTE_ARRAY, convertedtype=UTF8"`
	Reserve             string  `parquet:"name=reserve, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol              string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Mint                string  `parquet:"name=mint, type=BYTE_ARRAY, convertedtype=UTF8"`
	Slot                int64   `parquet:"name=slot, type=INT64"`
	Price               float64 `parquet:"name=price, type=DOUBLE"`
	TotalSupply         float64 `parquet:"name=total_supply, type=DOUBLE"`
	TotalBorrow         float64 `parquet:"name=total_borrow, type=DOUBLE"`
	Utilization         float64 `parquet:"name=utilization, type=DOUBLE"`
	BorrowAPR           float64 `parquet:"name=borrow_apr, type=DOUBLE"`
	SupplyAPR           float64 `parquet:"name=supply_apr, type=DOUBLE"`
	BorrowAPY           float64 `parquet:"name=borrow_apy, type=DOUBLE"`
	SupplyAPY           float64 `parquet:"name=supply_apy, type=DOUBLE"`
	DepositTVL          float64 `parquet:"name=deposit_tvl, type=DOUBLE"`
	BorrowTVL           float64 `parquet:"name=borrow_tvl, type=DOUBLE"`
	DepositLimitCrossed bool    `parquet:"name=deposit_limit_crossed, type=BOOLEAN"`
	BorrowLimitCrossed  bool    `parquet:"name=borrow_limit_crossed, type=BOOLEAN"`
}

func newReserveRow(market lending.Address, s lending.ReserveSummary) *reserveRow {
	return &reserveRow{
		Market:              market.String(),
		Reserve:             s.Address.String(),
		Symbol:              s.Symbol,
		Mint:                s.LiquidityMint.String(),
		Slot:                int64(s.Slot),
		Price:               s.Price.InexactFloat64(),
		TotalSupply:         s.TotalSupply.InexactFloat64(),
		TotalBorrow:         s.TotalBorrow.InexactFloat64(),
		Utilization:         s.Utilization.InexactFloat64(),
		BorrowAPR:           s.BorrowAPR.InexactFloat64(),
		SupplyAPR:           s.SupplyAPR.InexactFloat64(),
		BorrowAPY:           s.BorrowAPY.InexactFloat64(),
		SupplyAPY:           s.SupplyAPY.InexactFloat64(),
		DepositTVL:          s.DepositTVL.InexactFloat64(),
		BorrowTVL:           s.BorrowTVL.InexactFloat64(),
		DepositLimitCrossed: s.DepositLimitCrossed,
		BorrowLimitCrossed:  s.BorrowLimitCrossed,
	}
}

func newExportCmd(root *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write reserve metrics for every reserve to a parquet file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.open()
			if err != nil {
				return err
			}
			market := s.entry.Market.Address()
			rows := make([]*reserveRow, 0, len(s.entry.Market.Reserves()))
			for _, reserve := range s.entry.Market.Reserves() {
				summary, err := s.engine.ReserveSummary(market, reserve.Address(), s.slot)
				if err != nil {
					return err
				}
				rows = append(rows, newReserveRow(market, summary))
			}
			if err := writeParquet(out, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d reserves to %s\n", len(rows), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "reserves.parquet", "output parquet file")
	return cmd
}

func writeParquet(path string, rows []*reserveRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(reserveRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("export: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("export: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("export: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("export: close parquet file: %w", err)
	}
	return nil
}
