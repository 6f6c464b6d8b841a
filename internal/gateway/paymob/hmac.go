package paymob

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// callbackFields is the gateway's documented concatenation order for the
// transaction callback HMAC. Changing it rejects every callback.
var callbackFields = []string{
	"amount_cents",
	"created_at",
	"currency",
	"error_occured",
	"has_parent_transaction",
	"id",
	"integration_id",
	"is_3d_secure",
	"is_auth",
	"is_capture",
	"is_refunded",
	"is_standalone_payment",
	"is_voided",
	"order.id",
	"owner",
	"pending",
	"source_data.pan",
	"source_data.sub_type",
	"source_data.type",
	"success",
}

// Sign computes the hex HMAC-SHA512 of obj's callback fields.
func Sign(secret string, obj map[string]any) string {
	var b strings.Builder
	for _, path := range callbackFields {
		b.WriteString(render(lookup(obj, path)))
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches obj. An empty secret or
// signature never verifies.
func Verify(secret string, obj map[string]any, signature string) bool {
	if secret == "" || signature == "" || obj == nil {
		return false
	}
	want := Sign(secret, obj)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// lookup walks a dotted path through nested objects.
func lookup(obj map[string]any, path string) any {
	var cur any = obj
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

// render formats a JSON value the way the gateway does when signing:
// booleans as true/false, numbers as their literal, missing as "".
func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}
