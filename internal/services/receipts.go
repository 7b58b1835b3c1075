package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"

	"storefront_back_end/internal/models"
)

// ReceiptArchive stores a JSON receipt per confirmed order in an object bucket and hands out
// presigned download links for it.
type ReceiptArchive struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewReceiptArchive(client *minio.Client, bucket string, expiry time.Duration) *ReceiptArchive {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &ReceiptArchive{client: client, bucket: bucket, expiry: expiry}
}

func (r *ReceiptArchive) EnsureBucket(ctx context.Context) error {
	exists, err := r.client.BucketExists(ctx, r.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", r.bucket, err)
	}
	if exists {
		return nil
	}
	if err := r.client.MakeBucket(ctx, r.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", r.bucket, err)
	}
	return nil
}

type receipt struct {
	OrderID   string             `json:"order_id"`
	UserID    string             `json:"user_id"`
	SessionID string             `json:"session_id"`
	Items     []models.OrderItem `json:"items"`
	LineItems []models.LineItem  `json:"line_items"`
	Total     int64              `json:"total"`
	PaidAt    time.Time          `json:"paid_at"`
}

func (r *ReceiptArchive) Archive(ctx context.Context, order models.Order) error {
	data, err := json.Marshal(receipt{
		OrderID:   order.ID.Hex(),
		UserID:    order.UserID,
		SessionID: order.StripeSessionID,
		Items:     order.Items,
		LineItems: order.LineItems,
		Total:     order.Total,
		PaidAt:    order.UpdatedAt,
	})
	if err != nil {
		return err
	}
	_, err = r.client.PutObject(ctx, r.bucket, ReceiptKey(order), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("upload receipt: %w", err)
	}
	return nil
}

func (r *ReceiptArchive) URL(ctx context.Context, order models.Order) (string, error) {
	params := make(url.Values)
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", "receipt-"+order.ID.Hex()+".json"))

	u, err := r.client.PresignedGetObject(ctx, r.bucket, ReceiptKey(order), r.expiry, params)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func ReceiptKey(order models.Order) string {
	return "receipts/" + order.UserID + "/" + order.ID.Hex() + ".json"
}
