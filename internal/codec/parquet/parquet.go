// Package parquet reads and writes Parquet files through the Arrow pqarrow
// bridge, converting to and from table.Table.
package parquet

import (
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"
	pq "github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"etlcore/internal/etlerr"
	"etlcore/internal/table"
)

// Read decodes a whole Parquet file into memory.
func Read(ctx context.Context, r pq.ReaderAtSeeker) (*table.Table, error) {
	pf, err := file.NewParquetReader(r, file.WithReadProps(&pq.ReaderProperties{}))
	if err != nil {
		return nil, etlerr.IO("parquet open", err)
	}
	defer pf.Close()

	mem := memory.NewGoAllocator()
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, etlerr.IO("parquet reader", err)
	}
	at, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, etlerr.IO("parquet read", err)
	}
	defer at.Release()

	t, err := FromArrow(at)
	if err != nil {
		return nil, etlerr.IO("parquet convert", err)
	}
	return t, nil
}

// writerOnly hides Close from the parquet file writer, which otherwise
// closes its sink.
type writerOnly struct{ io.Writer }

// Write encodes t as a single row group with Snappy compression. The Arrow
// schema is stored in the file metadata so types round-trip exactly. w is
// never closed; the caller owns it.
func Write(w io.Writer, t *table.Table) error {
	if t.NumCols() == 0 {
		return etlerr.Schemaf("parquet write", "table has no columns")
	}
	mem := memory.NewGoAllocator()
	rec, err := ToArrow(mem, t)
	if err != nil {
		return etlerr.Schemaf("parquet write", "%v", err)
	}
	defer rec.Release()

	props := pq.NewWriterProperties(pq.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	fw, err := pqarrow.NewFileWriter(rec.Schema(), writerOnly{w}, props, arrowProps)
	if err != nil {
		return etlerr.IO("parquet writer", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return etlerr.IO("parquet write", err)
	}
	if err := fw.Close(); err != nil {
		return etlerr.IO("parquet close", err)
	}
	return nil
}
