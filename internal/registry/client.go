// Package registry 封装外部凭证注册表的 HTTP 访问。
// 注册表负责链上持仓查询，本服务只消费布尔结果。
package registry

import (
	"context"
	"fmt"
	"time"
	"tokengate_backend/internal/model"

	"github.com/avast/retry-go"
	"github.com/go-resty/resty/v2"
)

// Checker 供凭证服务消费的最小接口
type Checker interface {
	CheckHolds(ctx context.Context, wallet string, kind model.Tier) (bool, error)
}

type Client struct {
	httpClient       *resty.Client
	maxRetryAttempts uint
}

func NewClient(baseURL, apiKey string, timeout time.Duration, retryAttempts uint) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}

	return &Client{
		httpClient:       client,
		maxRetryAttempts: retryAttempts,
	}
}

type holdsResponse struct {
	Wallet string `json:"wallet"`
	Kind   string `json:"kind"`
	Holds  bool   `json:"holds"`
}

// CheckHolds 查询钱包是否持有某一层级的凭证。
// 瞬时失败按指数退避重试；最终失败返回错误，由调用方 fail-closed。
func (client *Client) CheckHolds(ctx context.Context, wallet string, kind model.Tier) (bool, error) {
	var result holdsResponse

	err := retry.Do(
		func() error {
			resp, err := client.httpClient.R().
				SetContext(ctx).
				SetQueryParam("wallet", wallet).
				SetQueryParam("kind", string(kind)).
				SetResult(&result).
				Get("/v1/credentials/holds")
			if err != nil {
				return err
			}
			if resp.IsError() {
				return fmt.Errorf("registry returned status %d", resp.StatusCode())
			}
			return nil
		},
		retry.Attempts(client.maxRetryAttempts),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return false, err
	}

	return result.Holds, nil
}
