package paymob

import (
	"errors"
	"strconv"
	"strings"
)

// Transaction is the part of a callback's `obj` the settlement logic reacts to.
type Transaction struct {
	ID              string
	Success         bool
	Pending         bool
	AmountCents     int64
	OrderID         string
	MerchantOrderID string
}

// ErrMalformedCallback is returned when obj lacks the fields needed to
// locate the lesson.
var ErrMalformedCallback = errors.New("malformed payment callback")

// ParseTransaction extracts the transaction summary from a verified obj.
func ParseTransaction(obj map[string]any) (Transaction, error) {
	tx := Transaction{
		ID:              render(lookup(obj, "id")),
		Success:         truthy(lookup(obj, "success")),
		Pending:         truthy(lookup(obj, "pending")),
		OrderID:         render(lookup(obj, "order.id")),
		MerchantOrderID: render(lookup(obj, "order.merchant_order_id")),
	}
	if cents, err := strconv.ParseInt(render(lookup(obj, "amount_cents")), 10, 64); err == nil {
		tx.AmountCents = cents
	}
	if tx.ID == "" || tx.MerchantOrderID == "" {
		return tx, ErrMalformedCallback
	}
	return tx, nil
}

// LessonID parses the lesson id prefix of a merchant order id
// ("<lessonID>-<suffix>").
func (t Transaction) LessonID() (uint64, error) {
	head, _, _ := strings.Cut(t.MerchantOrderID, "-")
	id, err := strconv.ParseUint(head, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrMalformedCallback
	}
	return id, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	}
	return false
}
