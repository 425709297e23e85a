package source

import (
	stdcsv "encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
)

// csvSchema uses declared columns when there are any, otherwise it reads the
// header and types every column as a nullable string
func csvSchema(spec Spec) (*arrow.Schema, error) {
	if len(spec.Columns) > 0 {
		return declaredSchema(spec.Columns)
	}

	file, err := os.Open(spec.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := stdcsv.NewReader(file)
	r.Comma = comma(spec.Path)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	fields := make([]arrow.Field, len(header))
	for i, name := range header {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

func openCSV(f *File, file *os.File) (array.RecordReader, error) {
	return csv.NewReader(file, f.schema,
		csv.WithHeader(true),
		csv.WithComma(comma(f.spec.Path)),
		csv.WithChunk(f.spec.BatchSize),
		csv.WithAllocator(f.mem),
		csv.WithNullReader(true, ""),
	), nil
}

func comma(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}
