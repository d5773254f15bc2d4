// Package credential 负责获取访问远端存储用的 Bearer Token。
//
// Token 对本工具是不透明的：只会被放进 Authorization 头，从不解析或刷新。
package credential

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

// ErrEmptyToken Provider 返回了空 Token
var ErrEmptyToken = errors.New("credential provider returned an empty token")

// DefaultCommand 默认通过 gcloud 获取访问令牌
var DefaultCommand = []string{"gcloud", "auth", "print-access-token"}

// Provider 返回一个 Bearer Token
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// ProviderFunc 让普通函数满足 Provider
type ProviderFunc func(ctx context.Context) (string, error)

func (f ProviderFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Static 固定 Token
func Static(token string) Provider {
	return ProviderFunc(func(context.Context) (string, error) {
		if token == "" {
			return "", ErrEmptyToken
		}
		return token, nil
	})
}

// Env 从环境变量读取
func Env(name string) Provider {
	return ProviderFunc(func(context.Context) (string, error) {
		token := strings.TrimSpace(os.Getenv(name))
		if token == "" {
			return "", fmt.Errorf("%w: $%s is not set", ErrEmptyToken, name)
		}
		return token, nil
	})
}

// Command 执行外部命令，标准输出 (去掉首尾空白) 即 Token
func Command(argv ...string) Provider {
	if len(argv) == 0 {
		argv = DefaultCommand
	}
	return ProviderFunc(func(ctx context.Context) (string, error) {
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("credential command %q failed: %w: %s",
				strings.Join(argv, " "), err, strings.TrimSpace(stderr.String()))
		}
		token := strings.TrimSpace(stdout.String())
		if token == "" {
			return "", ErrEmptyToken
		}
		return token, nil
	})
}

// Cached 只调用一次底层 Provider，成功后整个进程复用同一个 Token
// 失败不会被缓存
func Cached(p Provider) Provider {
	var (
		mu    sync.Mutex
		token string
	)
	return ProviderFunc(func(ctx context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if token != "" {
			return token, nil
		}
		t, err := p.Token(ctx)
		if err != nil {
			return "", err
		}
		token = t
		return token, nil
	})
}

// tokenSource 把 Provider 适配成 oauth2.TokenSource
type tokenSource struct {
	ctx context.Context
	p   Provider
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	t, err := s.p.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	// 没有 Expiry 的 Token 在 ReuseTokenSource 里永远有效
	return &oauth2.Token{AccessToken: t, TokenType: "Bearer"}, nil
}

// TokenSource 供 GCS 客户端使用
func TokenSource(ctx context.Context, p Provider) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &tokenSource{ctx: ctx, p: p})
}
