package collector

import "errors"

var (
	// ErrParse 响应内容无法解析，Classify 据此判定为 ParseError
	ErrParse = errors.New("parse error")
	// ErrUnexpectedStatus 非 200 响应
	ErrUnexpectedStatus = errors.New("unexpected HTTP status code")
	// ErrNoQuote 响应中没有目标价格
	ErrNoQuote = errors.New("no quote in response")
	// ErrUnknownKind 不支持的数据源类型
	ErrUnknownKind = errors.New("unknown source kind")
)
