package clovaocr

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecognizeRequestShape(t *testing.T) {
	var (
		gotSecret    string
		gotSignature string
		gotPayload   request
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("X-OCR-SECRET")
		gotSignature = r.Header.Get("X-OCR-SIGNATURE")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		json.NewEncoder(w).Encode(Response{
			Version: "V2",
			Images: []Image{{
				InferResult: "SUCCESS",
				Fields:      []Field{{InferText: "742", InferConfidence: 0.98}},
			}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-key", "access-key")
	resp, err := c.Recognize(context.Background(), []byte("jpeg bytes"))
	require.NoError(t, err)

	require.Len(t, resp.Images, 1)
	require.Len(t, resp.Images[0].Fields, 1)
	assert.Equal(t, "742", resp.Images[0].Fields[0].InferText)

	assert.Equal(t, "secret-key", gotSecret)
	assert.Equal(t, "V2", gotPayload.Version)
	assert.Equal(t, "ko", gotPayload.Lang)
	require.Len(t, gotPayload.Images, 1)
	assert.Equal(t, "jpg", gotPayload.Images[0].Format)
	assert.Equal(t, "bus_number", gotPayload.Images[0].Name)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("jpeg bytes")), gotPayload.Images[0].Data)

	mac := hmac.New(sha256.New, []byte("secret-key"))
	mac.Write([]byte(http.MethodPost))
	mac.Write([]byte(" \n"))
	mac.Write([]byte(strconv.FormatInt(gotPayload.Timestamp, 10)))
	mac.Write([]byte("\n"))
	mac.Write([]byte("access-key"))
	assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), gotSignature)
}

func TestRecognizeServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid signature", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-key", "access-key")
	_, err := c.Recognize(context.Background(), []byte("jpeg bytes"))

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusForbidden, svcErr.StatusCode)
	assert.Contains(t, svcErr.Body, "invalid signature")
}
