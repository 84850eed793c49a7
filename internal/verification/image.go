package verification

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand/v2"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	glyphWidth  = 7
	glyphHeight = 13
	glyphGap    = 3
	padding     = 4
	scale       = 4
	noiseDots   = 220
	noiseLines  = 5
)

var (
	background = color.RGBA{R: 0x2b, G: 0x2d, B: 0x31, A: 0xff}
	ink        = color.RGBA{R: 0xf2, G: 0xf3, B: 0xf5, A: 0xff}
)

// Render draws the code with the fixed bitmap font, scales it up and covers
// it with random dots and lines. The result is PNG encoded.
func Render(code string) ([]byte, error) {
	w := padding*2 + len(code)*(glyphWidth+glyphGap)
	h := padding*2 + glyphHeight
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	d := &font.Drawer{Dst: small, Src: image.NewUniform(ink), Face: basicfont.Face7x13}
	for i, r := range code {
		x := padding + i*(glyphWidth+glyphGap)
		y := padding + basicfont.Face7x13.Ascent + rand.IntN(3) - 1
		d.Dot = fixed.P(x, y)
		d.DrawString(string(r))
	}

	big := upscale(small, scale)
	addNoise(big)

	var buf bytes.Buffer
	if err := png.Encode(&buf, big); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func upscale(src *image.RGBA, factor int) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	for y := 0; y < dst.Bounds().Dy(); y++ {
		for x := 0; x < dst.Bounds().Dx(); x++ {
			dst.Set(x, y, src.At(x/factor, y/factor))
		}
	}
	return dst
}

func addNoise(img *image.RGBA) {
	b := img.Bounds()
	for range noiseDots {
		img.Set(rand.IntN(b.Dx()), rand.IntN(b.Dy()), randomColor())
	}
	for range noiseLines {
		x0, y0 := 0, rand.IntN(b.Dy())
		x1, y1 := b.Dx()-1, rand.IntN(b.Dy())
		c := randomColor()
		steps := x1 - x0
		for i := 0; i <= steps; i++ {
			y := y0 + (y1-y0)*i/steps
			img.Set(x0+i, y, c)
		}
	}
}

func randomColor() color.RGBA {
	return color.RGBA{
		R: uint8(96 + rand.IntN(160)),
		G: uint8(96 + rand.IntN(160)),
		B: uint8(96 + rand.IntN(160)),
		A: 0xff,
	}
}
