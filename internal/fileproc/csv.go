package fileproc

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/rag"
)

// csvColumns are the required header columns, in any order.
var csvColumns = []string{"id", "text", "label", "links", "medialinks"}

// ProcessCSV parses pre-chunked documents from a delimited file with header
// columns id, text, label, links, medialinks. The links and medialinks cells
// hold comma-separated values regardless of the column delimiter; an empty
// cell means an empty list. A missing column or a short row is rejected.
func ProcessCSV(r io.Reader, delimiter rune) ([]rag.Document, error) {
	if delimiter == 0 {
		delimiter = ','
	}

	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.Malformed("csv file is empty or has no header row")
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.ToLower(col))] = i
	}
	for _, col := range csvColumns {
		if _, ok := index[col]; !ok {
			return nil, apperrors.Malformed(fmt.Sprintf("csv file is missing the %q column", col))
		}
	}

	var docs []rag.Document
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Malformed(fmt.Sprintf("csv row %d is malformed: %v", line, err))
		}
		doc := rag.Document{
			ID:    strings.TrimSpace(row[index["id"]]),
			Text:  row[index["text"]],
			Label: strings.TrimSpace(row[index["label"]]),
			Links: splitCell(row[index["links"]]),
			Media: splitCell(row[index["medialinks"]]),
		}
		if doc.ID == "" {
			return nil, apperrors.Malformed(fmt.Sprintf("csv row %d has an empty id", line))
		}
		if strings.TrimSpace(doc.Text) == "" {
			return nil, apperrors.Malformed(fmt.Sprintf("csv row %d has empty text", line))
		}
		doc.Normalize()
		docs = append(docs, doc)
	}
	return docs, nil
}

// splitCell splits a comma-separated cell into trimmed values; an empty or
// blank cell yields an empty list.
func splitCell(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return []string{}
	}
	parts := strings.Split(cell, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
