package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/LJTian/DailyBrief/internal/config"
)

// HTMLFetcher 按 CSS 选择器抓取热榜/标题页面，适用于没有 RSS 的站点
type HTMLFetcher struct {
	src     config.Source
	timeout time.Duration
}

func NewHTMLFetcher(src config.Source, timeout time.Duration) *HTMLFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTMLFetcher{src: src, timeout: timeout}
}

func (h *HTMLFetcher) Name() string {
	return h.src.Name
}

func (h *HTMLFetcher) Fetch(ctx context.Context, limit int) ([]RawItem, error) {
	c := colly.NewCollector(colly.UserAgent(userAgent))

	// colly 不感知 ctx，把剩余时间折算进请求超时
	timeout := h.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, ctx.Err()
	}
	c.SetRequestTimeout(timeout)

	results := make([]RawItem, 0, 32)

	// 页面结构可能调整，此处基于配置的选择器做“尽力而为”的解析
	c.OnHTML(h.src.ItemSelector, func(e *colly.HTMLElement) {
		if limit > 0 && len(results) >= limit {
			return
		}
		title := e.ChildText(h.src.TitleSelector)
		if strings.TrimSpace(title) == "" {
			return
		}

		linkSel := h.src.LinkSelector
		if linkSel == "" {
			linkSel = "a"
		}
		link := h.src.URL
		if href := e.ChildAttr(linkSel, "href"); href != "" {
			link = e.Request.AbsoluteURL(href)
		}

		results = append(results, RawItem{
			Title:    title,
			Link:     link,
			SourceID: h.src.Name,
		})
	})

	if err := c.Visit(h.src.URL); err != nil {
		return nil, fmt.Errorf("html %s: %w", h.src.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("html %s: %w", h.src.Name, err)
	}
	return results, nil
}
