package provider

import (
	"context"
	"net/http"
	"net/url"
)

// Charge statuses.
const (
	ChargePending     = "pending"
	ChargeSucceeded   = "succeeded"
	ChargeFailed      = "failed"
	ChargeCanceled    = "canceled"
	ChargeChargedBack = "charged_back"
)

// Transfer statuses.
const (
	TransferPending  = "pending"
	TransferPosted   = "posted"
	TransferReturned = "returned"
	TransferFailed   = "failed"
	TransferCanceled = "canceled"
)

// Refund statuses.
const (
	RefundPending   = "pending"
	RefundSucceeded = "succeeded"
	RefundFailed    = "failed"
)

// Transfer directions.
const (
	DirectionDebit  = "debit"
	DirectionCredit = "credit"
)

// ChargeRequest creates a card charge. Amounts are in minor units.
type ChargeRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	SourceID    string `json:"source_id"`
	Description string `json:"description,omitempty"`
}

// Charge is a card charge.
type Charge struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	FailureCode string `json:"failure_code,omitempty"`
}

// TransferRequest creates an ACH transfer. Debits pull from the bank account, credits push to it.
type TransferRequest struct {
	Direction     string `json:"direction"`
	BankAccountID string `json:"bank_account_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Description   string `json:"description,omitempty"`
}

// Transfer is an ACH transfer.
type Transfer struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Direction   string `json:"direction"`
	Amount      int64  `json:"amount"`
	ReturnCode  string `json:"return_code,omitempty"`
	FailureCode string `json:"failure_code,omitempty"`
}

// RefundRequest refunds part or all of a card charge.
type RefundRequest struct {
	ChargeID string `json:"charge_id"`
	Amount   int64  `json:"amount"`
}

// Refund is a card refund.
type Refund struct {
	ID       string `json:"id"`
	ChargeID string `json:"charge_id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
}

func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest, idempotencyKey string) (*Charge, error) {
	var out Charge
	if err := c.do(ctx, http.MethodPost, "/v1/charges", idempotencyKey, req, &out); err != nil {
		return nil, err
	}
	if err := requireID(out.ID, "charge"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCharge(ctx context.Context, id string) (*Charge, error) {
	var out Charge
	if err := c.do(ctx, http.MethodGet, "/v1/charges/"+url.PathEscape(id), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTransfer(ctx context.Context, req TransferRequest, idempotencyKey string) (*Transfer, error) {
	var out Transfer
	if err := c.do(ctx, http.MethodPost, "/v1/transfers", idempotencyKey, req, &out); err != nil {
		return nil, err
	}
	if err := requireID(out.ID, "transfer"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTransfer(ctx context.Context, id string) (*Transfer, error) {
	var out Transfer
	if err := c.do(ctx, http.MethodGet, "/v1/transfers/"+url.PathEscape(id), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateRefund(ctx context.Context, req RefundRequest, idempotencyKey string) (*Refund, error) {
	var out Refund
	if err := c.do(ctx, http.MethodPost, "/v1/refunds", idempotencyKey, req, &out); err != nil {
		return nil, err
	}
	if err := requireID(out.ID, "refund"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetRefund(ctx context.Context, id string) (*Refund, error) {
	var out Refund
	if err := c.do(ctx, http.MethodGet, "/v1/refunds/"+url.PathEscape(id), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
