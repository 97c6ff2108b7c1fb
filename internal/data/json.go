package data

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"battery-dispatch/internal/model"
)

// HorizonDocument is the JSON shape of a horizon:
// {"hours": [{"label": "1", "pv": 0.0, "load": 1.2, "price": 0.11}, ...]}
type HorizonDocument struct {
	Hours []HourDocument `json:"hours"`
}

// HourDocument uses pointers so a missing field is an error rather than 0.
type HourDocument struct {
	Label string   `json:"label"`
	PV    *float64 `json:"pv"`
	Load  *float64 `json:"load"`
	Price *float64 `json:"price"`
}

func LoadJSON(path string) (*model.Horizon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJSON(f)
}

func ReadJSON(r io.Reader) (*model.Horizon, error) {
	var doc HorizonDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode horizon json: %w", err)
	}
	return doc.Horizon()
}

// Horizon validates the document and builds the model horizon.
func (d HorizonDocument) Horizon() (*model.Horizon, error) {
	n := len(d.Hours)
	labels := make([]string, n)
	pv := make([]float64, n)
	load := make([]float64, n)
	price := make([]float64, n)
	for i, h := range d.Hours {
		for _, f := range []struct {
			name string
			v    *float64
		}{{"pv", h.PV}, {"load", h.Load}, {"price", h.Price}} {
			if f.v == nil {
				return nil, &model.InputShapeError{Field: f.name, Slot: i, Reason: "missing value"}
			}
		}
		labels[i] = h.Label
		if labels[i] == "" {
			labels[i] = fmt.Sprint(i + 1)
		}
		pv[i], load[i], price[i] = *h.PV, *h.Load, *h.Price
	}
	return model.NewHorizon(labels, pv, load, price)
}

// DocumentFromHorizon is the inverse of HorizonDocument.Horizon.
func DocumentFromHorizon(h *model.Horizon) HorizonDocument {
	doc := HorizonDocument{Hours: make([]HourDocument, h.Len())}
	for i, o := range h.Observations() {
		pv, load, price := o.PV, o.Load, o.Price
		doc.Hours[i] = HourDocument{Label: o.Label, PV: &pv, Load: &load, Price: &price}
	}
	return doc
}
