package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"battery-dispatch/internal/model"
)

var csvColumns = []string{"hour", "pv", "load", "price"}

// LoadCSV reads a horizon from a CSV file with a header naming the columns
// hour, pv, load and price (any order, case-insensitive; extra columns are ignored).
func LoadCSV(path string) (*model.Horizon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

func ReadCSV(r io.Reader) (*model.Horizon, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &model.InputShapeError{Field: "hour", Want: 1, Got: 0, Reason: "csv is empty"}
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range csvColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("csv header is missing column %q", c)
		}
	}

	var (
		labels          []string
		pv, load, price []float64
	)
	for slot := 0; ; slot++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", slot+2, err)
		}
		vals := make([]float64, 3)
		for k, c := range csvColumns[1:] {
			v, err := parseNumber(strings.TrimSpace(rec[idx[c]]))
			if err != nil {
				return nil, &model.InputShapeError{Field: c, Slot: slot, Reason: fmt.Sprintf("line %d: %v", slot+2, err)}
			}
			vals[k] = v
		}
		labels = append(labels, strings.TrimSpace(rec[idx["hour"]]))
		pv = append(pv, vals[0])
		load = append(load, vals[1])
		price = append(price, vals[2])
	}
	return model.NewHorizon(labels, pv, load, price)
}
