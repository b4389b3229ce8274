package demo

import "strings"

// SplitWords 按单个空格切分文本, 保留顺序且不去重.
// 连续空格产生空词, 空串得到只含一个空串的列表.
func SplitWords(text string) []string {
	return strings.Split(text, " ")
}
