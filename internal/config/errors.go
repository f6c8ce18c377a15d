package config

import "errors"

var (
	// ErrInvalidSource 数据源配置不完整
	ErrInvalidSource = errors.New("invalid source config")
	// ErrUnknownSourceKind 不支持的新闻源类型
	ErrUnknownSourceKind = errors.New("unknown source kind")
	// ErrUnknownQuoteKind 不支持的报价候选源类型
	ErrUnknownQuoteKind = errors.New("unknown quote kind")
	// ErrInvalidCandidate 候选描述不是 kind:symbol 格式
	ErrInvalidCandidate = errors.New("candidate must be in kind:symbol format")
	// ErrInvalidPair 汇率候选必须写成 BASE/QUOTE
	ErrInvalidPair = errors.New("currency pair must be in BASE/QUOTE format")
	// ErrNegativeLimit 条数上限不能为负
	ErrNegativeLimit = errors.New("limit must not be negative")
)
