package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// IDList ID 集合，以紧凑 JSON 数组（如 [1,2,3]）存储，便于按边界 LIKE 匹配
type IDList []uint

// Value 实现 driver.Valuer 接口，写入前排序去重，空集合写为 []
func (l IDList) Value() (driver.Value, error) {
	normalized := l.Normalize()
	if len(normalized) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal([]uint(normalized))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (l *IDList) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = IDList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported id list type: %T", value)
	}
	if len(raw) == 0 {
		*l = IDList{}
		return nil
	}
	var ids []uint
	if err := json.Unmarshal(raw, &ids); err != nil {
		return err
	}
	*l = IDList(ids)
	return nil
}

// Normalize 返回排序去重且剔除 0 的副本
func (l IDList) Normalize() IDList {
	if len(l) == 0 {
		return IDList{}
	}
	seen := make(map[uint]struct{}, len(l))
	result := make(IDList, 0, len(l))
	for _, id := range l {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Contains 判断是否包含指定 ID
func (l IDList) Contains(id uint) bool {
	for _, item := range l {
		if item == id {
			return true
		}
	}
	return false
}

// StringArray 字符串数组类型，用于存储标签等
type StringArray []string

// Value 实现 driver.Valuer 接口
func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (s *StringArray) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = StringArray{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported string array type: %T", value)
	}
}
