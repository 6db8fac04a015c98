package kucoin

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
)

const restBase = "https://api.kucoin.com"

// signer produces the KC-API request headers for the v2 key scheme: the
// request signature and the passphrase are both HMAC-SHA256 over the
// API secret, base64 encoded.
type signer struct {
	apiKey     string
	apiSecret  string
	passphrase string
}

func hmacB64(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// headers signs timestamp+method+path+body and sets the five KC-API
// headers on the request.
func (s signer) headers(req *http.Request, method, pathWithQuery, body string) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("KC-API-KEY", s.apiKey)
	req.Header.Set("KC-API-SIGN", hmacB64(s.apiSecret, timestamp+method+pathWithQuery+body))
	req.Header.Set("KC-API-TIMESTAMP", timestamp)
	req.Header.Set("KC-API-PASSPHRASE", hmacB64(s.apiSecret, s.passphrase))
	req.Header.Set("KC-API-KEY-VERSION", "2")
}

// apiEnvelope is the common KuCoin response wrapper. Code "200000" is
// success; anything else carries a message.
type apiEnvelope struct {
	Code    string          `json:"code"`
	Message string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// call performs one signed REST request and unwraps the envelope into
// out (which may be nil for calls whose data is ignored).
func (a *Adapter) call(ctx context.Context, method, path string, body, out any) error {
	var payload string
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = string(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, restBase+path, bytes.NewBufferString(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	a.signer.headers(req, method, path, payload)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	if env.Code != "200000" {
		return fmt.Errorf("kucoin api error %s: %s", env.Code, env.Message)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

// bulletToken is the websocket access grant returned by the bullet
// endpoints.
type bulletToken struct {
	Token           string `json:"token"`
	InstanceServers []struct {
		Endpoint     string `json:"endpoint"`
		Protocol     string `json:"protocol"`
		PingInterval int    `json:"pingInterval"`
		PingTimeout  int    `json:"pingTimeout"`
	} `json:"instanceServers"`
}

// fetchBulletToken requests a private websocket token; the signed POST
// has an empty JSON body.
func (a *Adapter) fetchBulletToken(ctx context.Context) (*bulletToken, error) {
	var tok bulletToken
	if err := a.call(ctx, http.MethodPost, "/api/v1/bullet-private", struct{}{}, &tok); err != nil {
		return nil, err
	}
	if len(tok.InstanceServers) == 0 {
		return nil, fmt.Errorf("bullet token carries no instance servers")
	}
	return &tok, nil
}
