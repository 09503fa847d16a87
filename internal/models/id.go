// internal/models/id.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ID 资源标识符。后端可能返回字符串或数字，统一按字符串比较。
type ID string

// UnmarshalJSON 接受 JSON 字符串、数字或 null
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(normalizeNumber(n))
	return nil
}

// normalizeNumber 整数值统一写成无指数的十进制，1.0 和 1e0 都对应 "1"
func normalizeNumber(n json.Number) string {
	if _, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return n.String()
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return n.String()
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// String 返回标识符文本
func (id ID) String() string {
	return string(id)
}

// IsZero 是否为空标识符
func (id ID) IsZero() bool {
	return id == ""
}
