package rest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Signer authenticates API-key requests with an HMAC-SHA256 of
// timestamp + method + path + body. Keys are held as bytes so Wipe can
// clear them.
type Signer struct {
	apiKey    []byte
	apiSecret []byte
	now       func() time.Time
}

func NewSigner(apiKey, apiSecret string) *Signer {
	return &Signer{
		apiKey:    []byte(apiKey),
		apiSecret: []byte(apiSecret),
		now:       time.Now,
	}
}

func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	clear(s.apiKey)
	clear(s.apiSecret)
}

// Sign has the transport.RequestSigner shape.
func (s *Signer) Sign(request *resty.Request, method, path string, body []byte) {
	timestamp := strconv.FormatInt(s.now().UnixMilli(), 10)

	request.SetHeader("X-API-KEY", string(s.apiKey))
	request.SetHeader("X-TIMESTAMP", timestamp)
	request.SetHeader("X-SIGNATURE", s.signature(timestamp, method, path, body))
}

func (s *Signer) signature(timestamp, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, s.apiSecret)
	mac.Write([]byte(timestamp + method + path))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
