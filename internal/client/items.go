package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/lofoph/internal/model"
)

// ListQuery describes one page of the item collection.
type ListQuery struct {
	Page     int
	Limit    int
	ItemType string
	Filters  model.Filters
	// User restricts the listing to one reporter's items.
	User string
}

// Values encodes the query. Empty constraints and the "all" sentinel are
// omitted so the server never receives them.
func (q ListQuery) Values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.ItemType != "" {
		v.Set("itemType", q.ItemType)
	}

	f := q.Filters.Normalize()
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.Category != "" {
		v.Set("category", f.Category)
	}
	if f.City != "" {
		v.Set("city", f.City)
	}
	if f.Province != "" {
		v.Set("province", f.Province)
	}
	if q.User != "" {
		v.Set("user", q.User)
	}
	return v
}

type listResponse struct {
	Data struct {
		Data []model.Item `json:"data"`
	} `json:"data"`
}

// ListItems fetches one filtered page of items.
func (c *Client) ListItems(ctx context.Context, q ListQuery) ([]model.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("items", q.Values()), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	var resp listResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return resp.Data.Data, nil
}

type itemResponse struct {
	Data struct {
		Doc *model.Item `json:"doc"`
	} `json:"data"`
}

// GetItem fetches a single item by id.
func (c *Client) GetItem(ctx context.Context, id string) (*model.Item, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "items/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var resp itemResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	if resp.Data.Doc == nil {
		return nil, fmt.Errorf("getting item: %w", ErrMalformedResponse)
	}
	return resp.Data.Doc, nil
}

// CreateItem posts a new report as a multipart form. Each image becomes a
// separate "images" part.
func (c *Client) CreateItem(ctx context.Context, r model.Report) error {
	body, contentType, err := encodeReport(r)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("items", nil), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("creating item: %w", err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeReport(r model.Report) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"name", r.Name},
		{"description", r.Description},
		{"itemType", r.ItemType},
		{"location", r.Location},
		{"city", r.City},
		{"province", r.Province},
		{"date", r.Date.UTC().Format(time.RFC3339Nano)},
		{"user", r.User},
		{"reward", strconv.FormatFloat(r.Reward, 'f', -1, 64)},
		{"contactType", r.ContactType},
		{"contact", r.Contact},
		{"category", r.Category},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", f.name, err)
		}
	}

	for i, img := range r.Images {
		h := make(textproto.MIMEHeader)
		name := img.Filename
		if name == "" {
			name = fmt.Sprintf("image-%d", i+1)
		}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="%s"`, quoteEscaper.Replace(name)))
		ct := img.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("creating image part: %w", err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", fmt.Errorf("writing image part: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
