package amap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

// GeocoderClient 高德逆地理编码客户端
// 用于在 GPS 事件缺少地址时补全行程的最后已知地址
type GeocoderClient struct {
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger

	// 缓存：避免重复请求相同坐标
	cache   map[string]string
	cacheMu sync.RWMutex
}

// regeoResponse 高德逆地理编码响应
type regeoResponse struct {
	Status    string `json:"status"` // "1" 成功, "0" 失败
	Info      string `json:"info"`
	InfoCode  string `json:"infocode"`
	Regeocode *struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"regeocode"`
}

// NewGeocoderClient 创建高德逆地理编码客户端
func NewGeocoderClient(apiKey string, logger *zap.Logger) *GeocoderClient {
	return &GeocoderClient{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
		cache:  make(map[string]string),
	}
}

// IsConfigured 检查是否已配置 API Key
func (c *GeocoderClient) IsConfigured() bool {
	return c.apiKey != ""
}

// ReverseGeocode 根据经纬度获取格式化地址
func (c *GeocoderClient) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("amap api key not configured")
	}

	// 缓存 key 精确到小数点后4位，约11米精度
	cacheKey := fmt.Sprintf("%.4f,%.4f", lng, lat)

	c.cacheMu.RLock()
	if addr, ok := c.cache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		return addr, nil
	}
	c.cacheMu.RUnlock()

	// 高德 API 要求经度在前，纬度在后
	location := fmt.Sprintf("%.6f,%.6f", lng, lat)

	apiURL := fmt.Sprintf(
		"https://restapi.amap.com/v3/geocode/regeo?key=%s&location=%s&extensions=base&output=JSON",
		url.QueryEscape(c.apiKey),
		url.QueryEscape(location),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("amap api returned status %d", resp.StatusCode)
	}

	var result regeoResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if result.Status != "1" || result.Regeocode == nil {
		return "", fmt.Errorf("amap api error: %s (code: %s)", result.Info, result.InfoCode)
	}

	address := result.Regeocode.FormattedAddress

	c.cacheMu.Lock()
	c.cache[cacheKey] = address
	// 限制缓存大小（简单策略：超过 10000 条清空）
	if len(c.cache) > 10000 {
		c.cache = map[string]string{cacheKey: address}
	}
	c.cacheMu.Unlock()

	return address, nil
}
