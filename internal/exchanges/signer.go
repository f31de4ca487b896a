package exchanges

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"
)

// okxTimestampLayout is ISO-8601 with milliseconds in UTC ("2024-01-02T03:04:05.678Z").
const okxTimestampLayout = "2006-01-02T15:04:05.000Z"

// DefaultBybitRecvWindow is the receive window sent with every signed Bybit call.
const DefaultBybitRecvWindow = "20000"

func hmacSHA256(secret, payload string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(payload))
	return mac.Sum(nil)
}

// SignBinance signs an already encoded query string, which must carry the
// timestamp parameter.
func SignBinance(secret, query string) string {
	return hex.EncodeToString(hmacSHA256(secret, query))
}

// SignOKX signs timestamp + METHOD + requestPath + body. requestPath
// includes the query string; body is empty for GET.
func SignOKX(secret, timestamp, method, requestPath, body string) string {
	payload := timestamp + strings.ToUpper(method) + requestPath + body
	return base64.StdEncoding.EncodeToString(hmacSHA256(secret, payload))
}

// OKXTimestamp formats t the way OK-ACCESS-TIMESTAMP expects.
func OKXTimestamp(t time.Time) string {
	return t.UTC().Format(okxTimestampLayout)
}

// SignBybit signs timestamp + apiKey + recvWindow + query.
func SignBybit(secret, timestamp, apiKey, recvWindow, query string) string {
	return hex.EncodeToString(hmacSHA256(secret, timestamp+apiKey+recvWindow+query))
}
