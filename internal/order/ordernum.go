package order

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

// GenerateOrderNumber возвращает человекочитаемый номер заказа вида
// ORD-20250120-A1B2C3: дата по UTC плюс шесть hex-символов случайного UUID.
// Уникальность гарантирует constraint в базе, коллизия обрабатывается
// повторной генерацией на уровне сервиса.
func GenerateOrderNumber() (string, error) {
	u, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("failed to generate order number: %w", err)
	}

	dateStr := time.Now().UTC().Format("20060102")
	randomStr := strings.ToUpper(hex.EncodeToString(u.Bytes())[:6])

	return fmt.Sprintf("ORD-%s-%s", dateStr, randomStr), nil
}
