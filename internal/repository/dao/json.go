package dao

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JSON 以 TEXT 列存取 JSON 文档
// 订单的接收者列表和模板就落在这种列里，序列化由仓储层完成
type JSON json.RawMessage

// Value 实现 driver.Valuer，对应的列都是 NOT NULL，空文档直接报错
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, errors.New("JSON列不允许写入空文档")
	}
	return string(j), nil
}

// Scan 实现 sql.Scanner
func (j *JSON) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSON(v)
	default:
		return fmt.Errorf("无法把 %T 扫描为JSON列", value)
	}
	return nil
}
