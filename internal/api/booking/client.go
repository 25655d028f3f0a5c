package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// bookingTimeout 外部预约接口的调用超时
const bookingTimeout = 5 * time.Second

// Client 外部预约服务客户端
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// Request 预约请求
type Request struct {
	VehicleID  string   `json:"vehicleId"`
	CustomerID string   `json:"customerId"`
	FaultCodes []string `json:"faultCodes"`
}

// Response 预约响应
type Response struct {
	BookingID string `json:"bookingId"`
	DeepLink  string `json:"deepLink,omitempty"`
}

// NewClient 创建预约服务客户端
func NewClient(endpoint string, logger *zap.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: bookingTimeout,
		},
		logger: logger,
	}
}

// CreateBooking 发起预约
// 超时、网络错误、非 2xx、响应缺少 bookingId 都视为失败
func (c *Client) CreateBooking(ctx context.Context, request Request) (*Response, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal booking request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("booking api returned status %d", resp.StatusCode)
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if result.BookingID == "" {
		return nil, fmt.Errorf("booking api returned empty bookingId")
	}

	c.logger.Debug("Booking created",
		zap.String("vehicle_id", request.VehicleID),
		zap.String("booking_id", result.BookingID))

	return &result, nil
}
