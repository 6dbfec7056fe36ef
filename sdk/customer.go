package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/marwen-abid/wallet-sdk-go/core/net"
	"github.com/marwen-abid/wallet-sdk-go/errors"
)

// Customer manages KYC data with an anchor through SEP-12.
type Customer struct {
	anchor  *Anchor
	baseURL string
}

// CustomerQuery identifies the customer record to read.
type CustomerQuery struct {
	ID   string `structs:"id,omitempty"`
	Memo string `structs:"memo,omitempty"`
	Type string `structs:"type,omitempty"`
	Lang string `structs:"lang,omitempty"`
}

// CustomerField describes a KYC field the anchor needs or has received.
type CustomerField struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Choices     []string `json:"choices,omitempty"`
	Optional    bool     `json:"optional,omitempty"`
	Status      string   `json:"status,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// CustomerInfo is a SEP-12 GET /customer response.
type CustomerInfo struct {
	ID             string                   `json:"id,omitempty"`
	Status         string                   `json:"status"`
	Fields         map[string]CustomerField `json:"fields,omitempty"`
	ProvidedFields map[string]CustomerField `json:"provided_fields,omitempty"`
	Message        string                   `json:"message,omitempty"`
}

// Customer returns the SEP-12 client. KYC_SERVER is used when published,
// otherwise TRANSFER_SERVER.
func (a *Anchor) Customer() (*Customer, error) {
	baseURL := a.info.KYCServer
	if baseURL == "" {
		baseURL = a.info.TransferServerSep6
	}
	if baseURL == "" {
		return nil, errors.NewClientError(
			errors.SERVER_UNSUPPORTED,
			fmt.Sprintf("anchor %s does not provide KYC_SERVER in stellar.toml", a.session.HomeDomain),
			nil,
		)
	}
	return &Customer{anchor: a, baseURL: baseURL}, nil
}

// Get returns the customer's KYC status and the fields the anchor still needs.
func (c *Customer) Get(ctx context.Context, query CustomerQuery) (*CustomerInfo, error) {
	params := toValues(query, nil)
	if query.ID == "" {
		params.Set("account", c.anchor.session.Account)
	}

	resp, err := c.anchor.client.httpClient.Get(ctx, c.baseURL+"/customer?"+params.Encode(), net.WithBearer(c.anchor.session.JWT))
	if err != nil {
		return nil, errors.NewClientError(errors.REQUEST_FAILED, "failed to fetch customer", err)
	}
	return net.DecodeJSON[CustomerInfo](resp)
}

// Put creates or updates the customer with SEP-9 fields and returns the
// anchor's customer id.
func (c *Customer) Put(ctx context.Context, fields map[string]string) (string, error) {
	body := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	if _, ok := body["id"]; !ok {
		if _, ok := body["account"]; !ok {
			body["account"] = c.anchor.session.Account
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", errors.NewClientError(errors.VALIDATION_FAILED, "failed to encode customer fields", err)
	}

	resp, err := c.anchor.client.httpClient.Put(ctx, c.baseURL+"/customer", bytes.NewReader(payload), net.WithBearer(c.anchor.session.JWT))
	if err != nil {
		return "", errors.NewClientError(errors.REQUEST_FAILED, "failed to put customer", err)
	}

	out, err := net.DecodeJSON[struct {
		ID string `json:"id"`
	}](resp)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

// Delete removes all KYC data the anchor holds for the session's account.
func (c *Customer) Delete(ctx context.Context, memo string) error {
	endpoint := c.baseURL + "/customer/" + url.PathEscape(c.anchor.session.Account)
	if memo != "" {
		endpoint += "?" + url.Values{"memo": {memo}}.Encode()
	}

	resp, err := c.anchor.client.httpClient.Delete(ctx, endpoint, net.WithBearer(c.anchor.session.JWT))
	if err != nil {
		return errors.NewClientError(errors.REQUEST_FAILED, "failed to delete customer", err)
	}
	defer resp.Body.Close()

	if !resp.IsSuccess() {
		return net.StatusError(resp)
	}
	return nil
}
