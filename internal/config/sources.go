package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default_sources.yaml
var defaultSourcesFS embed.FS

// DefaultFetchTimeout 单个数据源请求的默认超时
const DefaultFetchTimeout = 15 * time.Second

// 新闻源类型
const (
	KindRSS        = "rss"
	KindHackerNews = "hackernews"
	KindHTML       = "html"
)

// 报价候选源类型，候选描述写作 "kind:symbol"
const (
	QuoteYahoo       = "yahoo"
	QuoteGoldPrice   = "goldprice"
	QuoteERAPI       = "erapi"
	QuoteFrankfurter = "frankfurter"
)

// Source 描述一个多条目数据源（新闻）
type Source struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	URL  string `yaml:"url"`

	// 仅 html 类型使用
	ItemSelector  string `yaml:"item_selector,omitempty"`
	TitleSelector string `yaml:"title_selector,omitempty"`
	LinkSelector  string `yaml:"link_selector,omitempty"`
}

// Quote 描述一个单值查询及其按优先级排列的候选源
type Quote struct {
	Name       string   `yaml:"name"`
	Candidates []string `yaml:"candidates"`
}

// SourcesFile 对应 sources YAML 文件结构
type SourcesFile struct {
	Feeds  []Source `yaml:"feeds"`
	Quotes []Quote  `yaml:"quotes"`
}

// Candidate 是解析后的候选源描述
type Candidate struct {
	Kind   string
	Symbol string
}

func (c Candidate) String() string {
	return c.Kind + ":" + c.Symbol
}

// LoadSources 读取 path 指定的 YAML；path 为空时使用内置默认配置
func LoadSources(path string) (*SourcesFile, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = defaultSourcesFS.ReadFile("default_sources.yaml")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(data)
}

func ParseSources(data []byte) (*SourcesFile, error) {
	var f SourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	for i := range f.Feeds {
		f.Feeds[i].Kind = strings.ToLower(strings.TrimSpace(f.Feeds[i].Kind))
		if f.Feeds[i].Kind == "" {
			f.Feeds[i].Kind = KindRSS
		}
	}
	return &f, nil
}

// ParseCandidate 解析 "kind:symbol"，symbol 本身可以包含冒号以外的任意字符
func ParseCandidate(s string) (Candidate, error) {
	kind, symbol, ok := strings.Cut(strings.TrimSpace(s), ":")
	kind = strings.ToLower(strings.TrimSpace(kind))
	symbol = strings.TrimSpace(symbol)
	if !ok || kind == "" || symbol == "" {
		return Candidate{}, fmt.Errorf("%w: %q", ErrInvalidCandidate, s)
	}
	switch kind {
	case QuoteYahoo, QuoteGoldPrice:
	case QuoteERAPI, QuoteFrankfurter:
		base, quote, ok := strings.Cut(symbol, "/")
		if !ok || base == "" || quote == "" {
			return Candidate{}, fmt.Errorf("%w: %q", ErrInvalidPair, s)
		}
	default:
		return Candidate{}, fmt.Errorf("%w: %q", ErrUnknownQuoteKind, kind)
	}
	return Candidate{Kind: kind, Symbol: symbol}, nil
}

// Validate 在运行前检查配置，避免到请求阶段才暴露问题
func (c *Config) Validate() error {
	if c.PerSourceLimit < 0 {
		return fmt.Errorf("%w: PER_SOURCE_LIMIT=%d", ErrNegativeLimit, c.PerSourceLimit)
	}
	if c.MaxItems < 0 {
		return fmt.Errorf("%w: MAX_ITEMS=%d", ErrNegativeLimit, c.MaxItems)
	}
	if c.FanOut < 1 {
		c.FanOut = 1
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}

	seen := make(map[string]struct{}, len(c.Feeds))
	for _, s := range c.Feeds {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("%w: feed without name", ErrInvalidSource)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate feed name %q", ErrInvalidSource, s.Name)
		}
		seen[s.Name] = struct{}{}

		switch s.Kind {
		case KindRSS, KindHackerNews:
		case KindHTML:
			if s.ItemSelector == "" || s.TitleSelector == "" {
				return fmt.Errorf("%w: html feed %q needs item_selector and title_selector", ErrInvalidSource, s.Name)
			}
		default:
			return fmt.Errorf("%w: %q (feed %q)", ErrUnknownSourceKind, s.Kind, s.Name)
		}
		if s.Kind != KindHackerNews {
			u, err := url.Parse(s.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("%w: feed %q has invalid url %q", ErrInvalidSource, s.Name, s.URL)
			}
		}
	}

	for _, q := range c.Quotes {
		if strings.TrimSpace(q.Name) == "" {
			return fmt.Errorf("%w: quote without name", ErrInvalidSource)
		}
		if len(q.Candidates) == 0 {
			return fmt.Errorf("%w: quote %q has no candidates", ErrInvalidSource, q.Name)
		}
		for _, raw := range q.Candidates {
			if _, err := ParseCandidate(raw); err != nil {
				return fmt.Errorf("quote %q: %w", q.Name, err)
			}
		}
	}
	return nil
}
