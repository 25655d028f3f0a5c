package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client 司机推送客户端
// 当前对接通用 HTTP 推送网关，生产环境可替换为 FCM/APNs
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// Message 推送消息
type Message struct {
	PushToken *string           `json:"-"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
}

// Result 推送结果
// 未注册 token 或传输失败都表现为 Delivered=false，不作为错误返回
type Result struct {
	Delivered bool   `json:"delivered"`
	Detail    string `json:"detail,omitempty"`
}

// NewClient 创建推送客户端
func NewClient(endpoint string, logger *zap.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Send 发送推送
// 没有 token 时直接短路返回未送达，不发起网络调用
func (c *Client) Send(ctx context.Context, message Message) (Result, error) {
	if message.PushToken == nil || *message.PushToken == "" {
		return Result{Delivered: false, Detail: "No push token registered"}, nil
	}

	payload := map[string]any{
		"token": *message.PushToken,
		"title": message.Title,
		"body":  message.Body,
		"data":  message.Data,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Delivered: false, Detail: err.Error()}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Delivered: false, Detail: err.Error()}, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Push notification failed", zap.Error(err))
		return Result{Delivered: false, Detail: err.Error()}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := fmt.Sprintf("push gateway returned status %d", resp.StatusCode)
		c.logger.Warn("Push notification failed", zap.String("detail", detail))
		return Result{Delivered: false, Detail: detail}, nil
	}

	return Result{Delivered: true}, nil
}
