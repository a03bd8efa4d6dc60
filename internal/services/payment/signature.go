package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"eventgo-saga/internal/status"
)

// signatureTolerance bounds webhook timestamp skew to limit replay windows.
const signatureTolerance = 5 * time.Minute

// VerifySignature checks the provider's "t=<unix>,v1=<hex>" signature header
// against HMAC-SHA256(secret, "<t>.<payload>"). An empty secret disables
// verification (development mode).
func VerifySignature(payload []byte, header, secret string) error {
	if secret == "" {
		return nil
	}

	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return status.ErrBadSignature
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return status.ErrBadSignature
	}
	if d := time.Since(time.Unix(unix, 0)); d > signatureTolerance || d < -signatureTolerance {
		return status.ErrBadSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return status.ErrBadSignature
}
