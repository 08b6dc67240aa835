package pdfrender

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrInvalidText 文本文件不是合法的 UTF-8
var ErrInvalidText = errors.New("text is not valid utf-8")

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// GetPlainText 读取纯文本文档：校验 UTF-8，去掉 BOM，统一换行
func GetPlainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", ErrInvalidText
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}
