package wsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"
)

// API calls the REST side of the server, used to re-fetch state after a reconnect.
type API struct {
	BaseURL string // http(s)://host:port
	Token   string
	HTTP    *http.Client
}

func (a *API) client() *http.Client {
	if a.HTTP != nil {
		return a.HTTP
	}
	return http.DefaultClient
}

// Messages returns the stored history of chatID, oldest first.
func (a *API) Messages(ctx context.Context, chatID string, limit int) ([]model.Message, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []model.Message
	err := a.do(ctx, http.MethodGet, "/api/chats/"+url.PathEscape(chatID)+"/messages?"+q.Encode(), nil, &out)
	return out, err
}

// CreateChat creates a chat; online participants get newChat.
func (a *API) CreateChat(ctx context.Context, in model.NewChat) (*model.Chat, error) {
	var out model.Chat
	if err := a.do(ctx, http.MethodPost, "/api/chats", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Online returns the server's online set.
func (a *API) Online(ctx context.Context) ([]string, error) {
	var out struct {
		Users []string `json:"users"`
	}
	err := a.do(ctx, http.MethodGet, "/api/presence", nil, &out)
	return out.Users, err
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errs.Wrap(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(a.BaseURL, "/")+path, rd)
	if err != nil {
		return errs.Wrap(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}
	resp, err := a.client().Do(req)
	if err != nil {
		return errs.WrapMsg(err, "request", "path", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Code  int    `json:"code"`
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return errs.New("request failed", "method", method, "path", path, "status", resp.StatusCode, "code", e.Code, "error", e.Error)
	}
	if out == nil {
		return nil
	}
	return errs.Wrap(json.NewDecoder(resp.Body).Decode(out))
}
