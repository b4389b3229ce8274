package demo

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"
)

// GoldenAngle 是相邻色相之间的旋转角度 (度).
const GoldenAngle = 137.508

// 固定的饱和度与亮度, 产生柔和的背景色.
const (
	Saturation = 50
	Lightness  = 80
)

// Color 是一个 HSL 颜色.
type Color struct {
	Hue        float64
	Saturation int
	Lightness  int
}

// String 以 CSS 形式输出颜色, 色相使用最短十进制表示.
func (c Color) String() string {
	return fmt.Sprintf("hsl(%s, %d%%, %d%%)",
		strconv.FormatFloat(c.Hue, 'f', -1, 64), c.Saturation, c.Lightness)
}

// Hue 返回字符码对应的色相, 结果在 [0, 360) 内.
func Hue(code int) float64 {
	return math.Mod(float64(code)*GoldenAngle, 360)
}

// ColorFor 按首个 UTF-16 码元为字符串着色. 空串按码元 0 处理.
// 首字符相同的字符串颜色一定相同.
func ColorFor(s string) Color {
	return Color{
		Hue:        Hue(firstCodeUnit(s)),
		Saturation: Saturation,
		Lightness:  Lightness,
	}
}

// TokenColor 按 token 的文本形式着色.
func TokenColor(t Token) Color {
	return ColorFor(t.String())
}

// firstCodeUnit 返回首字符的第一个 UTF-16 码元;
// 辅助平面字符取其高代理项.
func firstCodeUnit(s string) int {
	if s == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r1, _ := utf16.EncodeRune(r); r1 != utf8.RuneError {
		return int(r1)
	}
	return int(r)
}
