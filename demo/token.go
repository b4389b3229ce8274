package demo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// maxExactInt 是浮点数能精确表示的最大整数 (2^53).
const maxExactInt = 1 << 53

// Token 是分词服务返回的一个标识符, 可能是数字也可能是字符串.
// 保留其文本形式用于展示与着色.
type Token struct {
	text    string
	numeric bool
}

// NumberToken 由整数创建 Token.
func NumberToken(n int) Token {
	return Token{text: strconv.Itoa(n), numeric: true}
}

// StringToken 由字符串创建 Token.
func StringToken(s string) Token {
	return Token{text: s}
}

// String 返回 Token 的文本形式, 数字为十进制.
func (t Token) String() string {
	return t.text
}

// IsNumber 报告 Token 是否为数字.
func (t Token) IsNumber() bool {
	return t.numeric
}

// Int 在 Token 是整数时返回其值.
func (t Token) Int() (int, bool) {
	if !t.numeric {
		return 0, false
	}
	n, err := strconv.Atoi(t.text)
	return n, err == nil
}

// UnmarshalJSON 接受 JSON 数字、字符串、布尔值或 null.
// 可精确表示的整数原样保留, 其他数字按浏览器 String(number) 的规则输出,
// 例如 1.5、1e+21、1e-7.
func (t *Token) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty token")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode string token: %w", err)
		}
		*t = StringToken(s)
		return nil
	case '{', '[':
		return fmt.Errorf("unsupported token value %s", data)
	case 't', 'f', 'n':
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode token: %w", err)
		}
		*t = StringToken(string(data))
		return nil
	}

	raw := string(data)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n >= -maxExactInt && n <= maxExactInt {
		*t = Token{text: strconv.FormatInt(n, 10), numeric: true}
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("decode numeric token %q: %w", raw, err)
	}
	*t = Token{text: formatNumber(f), numeric: true}
	return nil
}

// formatNumber 按 ECMAScript Number::toString 格式化有限浮点数:
// 十进制指数在 (-7, 21] 之间用定点形式, 否则用 d.ddde±n 形式.
func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	if f < 0 {
		return "-" + formatNumber(-f)
	}

	// 最短往返表示, 形如 d.ddde±XX
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	mant, expPart, _ := strings.Cut(sci, "e")
	exp, _ := strconv.Atoi(expPart)
	digits := strings.Replace(mant, ".", "", 1)
	k, n := len(digits), exp+1

	switch {
	case k <= n && n <= 21:
		return digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		return digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		return "0." + strings.Repeat("0", -n) + digits
	}

	sign := "+"
	if n-1 < 0 {
		sign = "-"
	}
	e := n - 1
	if e < 0 {
		e = -e
	}
	if k == 1 {
		return digits + "e" + sign + strconv.Itoa(e)
	}
	return digits[:1] + "." + digits[1:] + "e" + sign + strconv.Itoa(e)
}

// MarshalJSON 数字输出为 JSON 数字, 其余输出为 JSON 字符串.
func (t Token) MarshalJSON() ([]byte, error) {
	if t.numeric {
		return []byte(t.text), nil
	}
	return json.Marshal(t.text)
}
