package pipeline

import (
	"context"
	"encoding/json"
	"io"
)

// Consumer 接收一次运行的 Digest，负责渲染、投递或归档
type Consumer interface {
	Consume(ctx context.Context, d Digest) error
}

// ConsumerFunc 让普通函数满足 Consumer
type ConsumerFunc func(ctx context.Context, d Digest) error

func (f ConsumerFunc) Consume(ctx context.Context, d Digest) error {
	return f(ctx, d)
}

// JSONConsumer 把 Digest 以缩进 JSON 写入 W
type JSONConsumer struct {
	W io.Writer
}

func (c JSONConsumer) Consume(_ context.Context, d Digest) error {
	enc := json.NewEncoder(c.W)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
