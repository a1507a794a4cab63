// Package clovaocr is a client for a CLOVA-style general OCR endpoint.
package clovaocr

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Client struct {
	endpoint   string
	secretKey  string
	accessKey  string
	lang       string
	httpClient *http.Client
}

func New(endpoint, secretKey, accessKey string) *Client {
	return &Client{
		endpoint:  endpoint,
		secretKey: secretKey,
		accessKey: accessKey,
		lang:      "ko",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// ServiceError is a non-success response from the OCR endpoint.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("ocr service returned status %d: %s", e.StatusCode, e.Body)
}

type request struct {
	Version   string  `json:"version"`
	RequestID string  `json:"requestId"`
	Timestamp int64   `json:"timestamp"`
	Lang      string  `json:"lang"`
	Images    []image `json:"images"`
}

type image struct {
	Format string `json:"format"`
	Name   string `json:"name"`
	Data   string `json:"data"`
}

// Field is one recognized text region
type Field struct {
	ValueType       string  `json:"valueType"`
	InferText       string  `json:"inferText"`
	InferConfidence float64 `json:"inferConfidence"`
	Type            string  `json:"type"`
	LineBreak       bool    `json:"lineBreak"`
}

// Image is the per-image recognition result
type Image struct {
	UID         string  `json:"uid"`
	Name        string  `json:"name"`
	InferResult string  `json:"inferResult"`
	Message     string  `json:"message"`
	Fields      []Field `json:"fields"`
}

// Response is the full OCR service response
type Response struct {
	Version   string  `json:"version"`
	RequestID string  `json:"requestId"`
	Timestamp int64   `json:"timestamp"`
	Images    []Image `json:"images"`
}

// Recognize submits a JPEG region and returns the raw recognition result.
// Response structure is not validated here; callers own that precondition.
func (c *Client) Recognize(ctx context.Context, jpegData []byte) (*Response, error) {
	now := time.Now().UnixMilli()

	payload := request{
		Version:   "V2",
		RequestID: fmt.Sprintf("bus_%s", uuid.New().String()),
		Timestamp: now,
		Lang:      c.lang,
		Images: []image{{
			Format: "jpg",
			Name:   "bus_number",
			Data:   base64.StdEncoding.EncodeToString(jpegData),
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-OCR-SECRET", c.secretKey)
	req.Header.Set("X-OCR-SIGNATURE", c.sign(http.MethodPost, now))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &out, nil
}

// sign builds the gateway HMAC-SHA256 signature over method, timestamp,
// and access key.
func (c *Client) sign(method string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(method))
	mac.Write([]byte(" "))
	mac.Write([]byte("\n"))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("\n"))
	mac.Write([]byte(c.accessKey))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
