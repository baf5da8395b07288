package service

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// joinCodeAlphabet 去掉了易混淆的 0/O、1/I/L
const joinCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// generateJoinCode 生成指定长度的随机邀请码
func generateJoinCode(length int) (string, error) {
	var sb strings.Builder
	sb.Grow(length)
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(joinCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// normalizeJoinCode 邀请码不区分大小写，忽略首尾空白
func normalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
