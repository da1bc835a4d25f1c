package chat

import (
	"io"
	"sync"

	"PPChat/tools/errs"
)

// Client 一条在线连接；用户只在 join 时绑定一次
type Client struct {
	ID         string // 每条连接唯一（雪花ID）
	AuthUserID string // 握手鉴权得到的用户；未开启鉴权时为空
	RemoteAddr string

	send   chan []byte // 每连接独立发送队列，由唯一的 writer 消费
	closer io.Closer

	mu     sync.RWMutex
	userID string

	closeOnce sync.Once
}

// NewClient 创建连接，发送队列长度为 queueSize
func NewClient(id, authUserID string, queueSize int, closer io.Closer) *Client {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Client{
		ID:         id,
		AuthUserID: authUserID,
		send:       make(chan []byte, queueSize),
		closer:     closer,
	}
}

// Send 发送队列；连接离开 hub 后关闭
func (c *Client) Send() <-chan []byte { return c.send }

func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// bindUser 绑定所属用户：重复绑定同一用户无操作；换用户或与握手身份不符则拒绝
func (c *Client) bindUser(userID string) error {
	if c.AuthUserID != "" && c.AuthUserID != userID {
		return errs.ErrIdentityMismatch.WrapMsg("join user differs from token subject", "userId", userID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID != "" && c.userID != userID {
		return errs.ErrIdentityMismatch.WrapMsg("connection already joined as another user", "userId", userID)
	}
	c.userID = userID
	return nil
}

// Close 只关闭一次底层连接，读循环随之退出并执行断线处理
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.closer != nil {
			_ = c.closer.Close()
		}
	})
}
