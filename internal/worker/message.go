package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// MessageSkipWaiting 是页面请求立即激活等待版本的控制消息。
const MessageSkipWaiting = "skipWaiting"

// ParseMessage 识别三种写法：裸字符串 skipWaiting、JSON 字符串 "skipWaiting"、
// 以及 {"type":"skipWaiting"}。
func ParseMessage(data []byte) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if string(trimmed) == MessageSkipWaiting {
		return MessageSkipWaiting, nil
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		if text == MessageSkipWaiting {
			return text, nil
		}
		return "", fmt.Errorf("%w: %q", ErrUnknownMessage, text)
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err == nil && envelope.Type == MessageSkipWaiting {
		return envelope.Type, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownMessage, truncate(trimmed, 64))
}

// PostMessage 处理来自页面的控制消息。
func (r *Registration) PostMessage(ctx context.Context, data []byte) error {
	msg, err := ParseMessage(data)
	if err != nil {
		r.logger.WithError(err).Warn("worker_message_ignored")
		return err
	}
	switch msg {
	case MessageSkipWaiting:
		return r.SkipWaiting(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMessage, msg)
	}
}

func truncate(data []byte, limit int) string {
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
