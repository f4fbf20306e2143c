// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"image"
	"image/color"
	"image/draw"
)

type subImager interface {
	draw.Image
	SubImage(image.Rectangle) image.Image
}

// subDrawImage returns a view of the rect region of img with its origin
// at rect.Min.
func subDrawImage(img subImager, rect image.Rectangle) draw.Image {
	return drawOffset{
		Image:  img.SubImage(rect).(draw.Image),
		offset: rect.Min,
	}
}

type drawOffset struct {
	draw.Image
	offset image.Point
}

func (i drawOffset) Bounds() image.Rectangle {
	return i.Image.Bounds().Sub(i.offset)
}

func (i drawOffset) Set(x, y int, c color.Color) {
	i.Image.Set(x+i.offset.X, y+i.offset.Y, c)
}

func (i drawOffset) At(x, y int) color.Color {
	return i.Image.At(x+i.offset.X, y+i.offset.Y)
}

func blank(img draw.Image) {
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
}

// bars draws vals as a bar chart filling the height of img, scaled so
// that a bar of height max reaches the top. Values are right-aligned so
// the newest value is at the right edge.
func bars(img draw.Image, vals []float64, max float64) {
	blank(img)
	if max <= 0 {
		return
	}
	b := img.Bounds()
	x0 := b.Dx() - len(vals)
	for i, v := range vals {
		h := int(v / max * float64(b.Dy()))
		h = min(h, b.Dy())
		for y := b.Dy() - h; y < b.Dy(); y++ {
			img.Set(x0+i, y, color.Black)
		}
	}
}

// displayShim adapts a draw.Image to a tinyfont.Displayer.
type displayShim struct {
	img draw.Image
}

func (d displayShim) SetPixel(x, y int16, c color.RGBA) {
	d.img.Set(int(x), int(y), c)
}

func (d displayShim) Size() (x, y int16) {
	b := d.img.Bounds()
	return int16(b.Dx()), int16(b.Dy())
}

func (d displayShim) Display() error { return nil }
