// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"image/color"
	"image/draw"
	"strconv"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freesans"

	"github.com/kortschak/cycling/cmd/internal/ring"
	"github.com/kortschak/cycling/csc"
)

// readout renders a single rate value with its unit.
type readout struct {
	img  draw.Image
	unit string
	prec int
}

func newReadout(img draw.Image, unit string, prec int) *readout {
	r := &readout{img: img, unit: unit, prec: prec}
	r.set(csc.Value{})
	return r
}

func (r *readout) set(v csc.Value) {
	blank(r.img)

	width := r.img.Bounds().Dx()
	yOffset := -10

	text := "-"
	switch {
	case v.Stopped:
		text = "0"
	case v.Valid:
		text = strconv.FormatFloat(v.Rate, 'f', r.prec, 64)
	}
	valFont := &freesans.Bold18pt7b
	_, valW := tinyfont.LineWidth(valFont, text)
	tinyfont.WriteLine(
		displayShim{r.img},
		valFont,
		int16(width-int(valW))/2, int16(int(valFont.YAdvance)+yOffset), text,
		color.RGBA{A: 0xff},
	)

	unitFont := &freesans.Regular9pt7b
	_, unitW := tinyfont.LineWidth(unitFont, r.unit)
	tinyfont.WriteLine(
		displayShim{r.img},
		unitFont,
		int16(width-int(unitW))/2, int16(int(unitFont.YAdvance)+int(valFont.YAdvance)+yOffset), r.unit,
		color.RGBA{A: 0xff},
	)
}

// history renders a bar chart of recent rate values.
type history struct {
	img  draw.Image
	ring *ring.Buffer[float64]
	buf  []float64
}

func newHistory(img draw.Image) *history {
	n := img.Bounds().Dx()
	h := &history{
		img:  img,
		ring: ring.NewBuffer[float64](n),
		buf:  make([]float64, n),
	}
	blank(img)
	return h
}

func (h *history) add(v csc.Value) {
	if !v.Valid {
		// Repeat the last value so the chart advances with
		// notifications that carry no new revolutions.
		last, ok := h.ring.Last()
		if !ok {
			return
		}
		v.Rate = last
	}
	h.ring.Add(v.Rate)
	n := h.ring.CopyTo(h.buf)
	max := 0.0
	for _, e := range h.buf[:n] {
		if e > max {
			max = e
		}
	}
	bars(h.img, h.buf[:n], max)
}
