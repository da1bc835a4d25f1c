package wsclient

import (
	"context"
	"encoding/json"

	"PPChat/module/chat/reconcile"
)

// Attach feeds every inbound event to r. The client is r's Sender.
func Attach(c *Client, r *reconcile.Reconciler) {
	c.OnAny(func(ctx context.Context, event string, data json.RawMessage) error {
		return r.Handle(ctx, event, data)
	})
}

// NewReconciler builds a Reconciler that sends through c and is fed by it.
func NewReconciler(c *Client, userID, username string) *reconcile.Reconciler {
	r := reconcile.New(userID, username, c)
	Attach(c, r)
	return r
}
